package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/ledger"
)

// SessionStatusFor derives a session's display status from its payment.
// Checks run in precedence order: later ones override earlier ones.
func SessionStatusFor(p *domain.Payment, state ledger.State) domain.SessionStatus {
	status := domain.SessionStatusPending
	if p == nil {
		return status
	}
	status = domain.SessionStatusAuthorized
	if ev, ok := state.LatestAuthorisation(); ok && ev.Status == ledger.StatusFailed {
		status = domain.SessionStatusError
	}
	if p.CapturedAt != nil {
		status = domain.SessionStatusCaptured
	}
	if p.CanceledAt != nil {
		status = domain.SessionStatusCanceled
	}
	return status
}

func (s *Service) syncSession(ctx context.Context, r *run, sessionID uuid.UUID) error {
	// Re-read: the outcome branch may have changed the payment underneath.
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}

	var p *domain.Payment
	var state ledger.State
	if session.PaymentID != nil {
		p, err = s.payments.GetByID(ctx, *session.PaymentID)
		if err != nil {
			return err
		}
		state, err = ledger.Parse(p.Data)
		if err != nil {
			return err
		}
	}

	status := SessionStatusFor(p, state)
	if session.Status == status {
		return nil
	}

	before := cloneSession(session)
	after := cloneSession(session)
	after.Status = status
	if err := s.sessions.Update(ctx, after); err != nil {
		return err
	}
	r.push(undoRecord{restoreSession: before})
	return nil
}
