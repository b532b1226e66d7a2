package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solentpay/payment-reconciler/internal/classifier"
	"github.com/solentpay/payment-reconciler/internal/currency"
	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/ledger"
)

// actorNotification marks sub-records created from the async path rather than
// a synchronous provider response.
const actorNotification = "notification"

func (s *Service) applyOutcome(
	ctx context.Context,
	r *run,
	outcome classifier.Outcome,
	session *domain.PaymentSession,
	n domain.Notification,
) error {
	if n.MinorUnitValue <= 0 {
		return fmt.Errorf("notification %s carries no amount: %w", n.PSPReference, domain.ErrInvalidArgument)
	}
	if session.PaymentID == nil {
		return fmt.Errorf("session %s has no payment record: %w", session.ID, domain.ErrNotFound)
	}

	p, err := s.payments.GetByID(ctx, *session.PaymentID)
	if err != nil {
		return err
	}
	state, err := ledger.Parse(p.Data)
	if err != nil {
		return err
	}

	switch outcome {
	case classifier.OutcomeAuthSuccess:
		return s.applyAuthResult(ctx, r, p, state, n, ledger.StatusSucceeded)
	case classifier.OutcomeAuthFailed:
		return s.applyAuthResult(ctx, r, p, state, n, ledger.StatusFailed)
	case classifier.OutcomeCancelSuccess:
		return s.applyCancelSuccess(ctx, r, p, state, n)
	case classifier.OutcomeCancelFailed:
		return s.applyCancelFailed(ctx, r, p, state, n)
	case classifier.OutcomeCaptureSuccess:
		return s.applyCaptureSuccess(ctx, r, p, state, n)
	case classifier.OutcomeCaptureFailed:
		return s.applyCaptureFailed(ctx, r, p, state, n)
	case classifier.OutcomeRefundSuccess:
		return s.applyRefundSuccess(ctx, r, p, state, n)
	case classifier.OutcomeRefundFailed:
		return s.applyRefundFailed(ctx, r, p, state, n)
	}
	return nil
}

func eventFromNotification(name ledger.EventName, status ledger.EventStatus, n domain.Notification, subRecordID string) ledger.Event {
	return ledger.Event{
		ID:                subRecordID,
		Name:              name,
		Status:            status,
		Amount:            domain.NewAmount(n.Currency, currency.ToWholeUnit(n.MinorUnitValue, n.Currency)),
		ProviderReference: n.PSPReference,
		MerchantReference: n.MerchantReference,
		Date:              n.EventDate,
		Message:           n.Reason,
	}
}

// applyAuthResult records the authorisation outcome. The ledger document is
// created here on the first successful authorisation; it is mutated by every
// later notification and never deleted.
func (s *Service) applyAuthResult(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification, status ledger.EventStatus) error {
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok {
		ev.Status = status
		ev.Date = n.EventDate
		ev.Message = n.Reason
		state = state.SetEvent(ev)
	} else {
		if state.Reference == "" {
			state.Reference = n.MerchantReference
			state.Amount = domain.NewAmount(n.Currency, currency.ToWholeUnit(n.MinorUnitValue, n.Currency))
		}
		state = state.SetEvent(eventFromNotification(ledger.EventAuthorisation, status, n, ""))
	}

	data, err := state.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(p)
	after.Data = data
	return s.updatePayment(ctx, r, p, after)
}

func (s *Service) applyCancelSuccess(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	// A REQUESTED entry is only the synchronous ack of a merchant-initiated
	// modification; the notification is what confirms the money moved, so it
	// takes the full path below. Anything else is a redelivery: pure ledger
	// status rewrite, no side effect.
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok && ev.Status != ledger.StatusRequested {
		ev.Status = ledger.StatusSucceeded
		ev.Date = n.EventDate
		return s.writeLedger(ctx, r, p, state.SetEvent(ev))
	}

	if _, err := state.Authorisation(); err != nil {
		return err
	}

	// First time this cancellation is seen, and only from the async path:
	// flag the ledger before the domain mutation, clear it after.
	marked, err := s.writeLedgerMarked(ctx, r, p, state)
	if err != nil {
		return err
	}

	now := s.now()
	final := marked.state.SetEvent(eventFromNotification(ledger.EventCancellation, ledger.StatusSucceeded, n, "")).ClearWebhook()
	data, err := final.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(marked.payment)
	after.Data = data
	after.CanceledAt = &now
	return s.updatePayment(ctx, r, marked.payment, after)
}

func (s *Service) applyCaptureSuccess(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok && ev.Status != ledger.StatusRequested {
		ev.Status = ledger.StatusSucceeded
		ev.Date = n.EventDate
		return s.writeLedger(ctx, r, p, state.SetEvent(ev))
	}

	if _, err := state.Authorisation(); err != nil {
		return err
	}

	marked, err := s.writeLedgerMarked(ctx, r, p, state)
	if err != nil {
		return err
	}

	now := s.now()
	capture := &domain.Capture{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Amount:    currency.ToWholeUnit(n.MinorUnitValue, n.Currency),
		CreatedBy: actorNotification,
		CreatedAt: now,
	}
	if err := s.captures.Create(ctx, capture); err != nil {
		return err
	}
	r.push(undoRecord{deleteCaptureID: &capture.ID})

	captured, err := s.capturedTotal(ctx, p.ID)
	if err != nil {
		return err
	}

	final := marked.state.SetEvent(eventFromNotification(ledger.EventCapture, ledger.StatusSucceeded, n, capture.ID.String())).ClearWebhook()
	data, err := final.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(marked.payment)
	after.Data = data
	if fullyCovered(captured, p.Amount, p.CurrencyCode) {
		after.CapturedAt = &now
	}
	return s.updatePayment(ctx, r, marked.payment, after)
}

func (s *Service) applyRefundSuccess(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok && ev.Status != ledger.StatusRequested {
		ev.Status = ledger.StatusSucceeded
		ev.Date = n.EventDate
		return s.writeLedger(ctx, r, p, state.SetEvent(ev))
	}

	if _, err := state.Authorisation(); err != nil {
		return err
	}

	marked, err := s.writeLedgerMarked(ctx, r, p, state)
	if err != nil {
		return err
	}

	ref := &domain.Refund{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Amount:    currency.ToWholeUnit(n.MinorUnitValue, n.Currency),
		CreatedBy: actorNotification,
		CreatedAt: s.now(),
	}
	if err := s.refunds.Create(ctx, ref); err != nil {
		return err
	}
	r.push(undoRecord{deleteRefundID: &ref.ID})

	final := marked.state.SetEvent(eventFromNotification(ledger.EventRefund, ledger.StatusSucceeded, n, ref.ID.String())).ClearWebhook()
	data, err := final.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(marked.payment)
	after.Data = data
	return s.updatePayment(ctx, r, marked.payment, after)
}

func (s *Service) applyCaptureFailed(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	if !state.IsAuthorised() {
		return fmt.Errorf("capture failure for unauthorised payment %s: %w", p.ID, domain.ErrNotAllowed)
	}

	after := clonePayment(p)

	// A prior success may have created a capture this failure disowns.
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok && ev.ID != "" {
		if err := s.removeCapture(ctx, r, ev.ID); err != nil {
			return err
		}
		captured, err := s.capturedTotal(ctx, p.ID)
		if err != nil {
			return err
		}
		if !fullyCovered(captured, p.Amount, p.CurrencyCode) {
			after.CapturedAt = nil
		}
	}

	state = state.SetEvent(eventFromNotification(ledger.EventCapture, ledger.StatusFailed, n, ""))
	data, err := state.Encode()
	if err != nil {
		return err
	}
	after.Data = data
	return s.updatePayment(ctx, r, p, after)
}

func (s *Service) applyRefundFailed(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	if !state.IsAuthorised() {
		return fmt.Errorf("refund failure for unauthorised payment %s: %w", p.ID, domain.ErrNotAllowed)
	}

	if ev, ok := state.EventByProviderRef(n.PSPReference); ok && ev.ID != "" {
		if err := s.removeRefund(ctx, r, ev.ID); err != nil {
			return err
		}
	}

	state = state.SetEvent(eventFromNotification(ledger.EventRefund, ledger.StatusFailed, n, ""))
	data, err := state.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(p)
	after.Data = data
	return s.updatePayment(ctx, r, p, after)
}

func (s *Service) applyCancelFailed(ctx context.Context, r *run, p *domain.Payment, state ledger.State, n domain.Notification) error {
	if !state.IsAuthorised() {
		return fmt.Errorf("cancellation failure for unauthorised payment %s: %w", p.ID, domain.ErrNotAllowed)
	}

	after := clonePayment(p)

	// Undo a cancellation this reference previously reported as succeeded.
	if ev, ok := state.EventByProviderRef(n.PSPReference); ok &&
		ev.Name == ledger.EventCancellation && ev.Status == ledger.StatusSucceeded {
		after.CanceledAt = nil
	}

	state = state.SetEvent(eventFromNotification(ledger.EventCancellation, ledger.StatusFailed, n, ""))
	data, err := state.Encode()
	if err != nil {
		return err
	}
	after.Data = data
	return s.updatePayment(ctx, r, p, after)
}

// writeLedger persists a pure ledger rewrite with no other payment change.
func (s *Service) writeLedger(ctx context.Context, r *run, p *domain.Payment, state ledger.State) error {
	data, err := state.Encode()
	if err != nil {
		return err
	}
	after := clonePayment(p)
	after.Data = data
	return s.updatePayment(ctx, r, p, after)
}

type markedWrite struct {
	payment *domain.Payment
	state   ledger.State
}

// writeLedgerMarked persists the webhook marker ahead of a domain mutation
// and hands back the written view for the follow-up write that clears it.
func (s *Service) writeLedgerMarked(ctx context.Context, r *run, p *domain.Payment, state ledger.State) (*markedWrite, error) {
	marked := state.WithWebhook()
	data, err := marked.Encode()
	if err != nil {
		return nil, err
	}
	after := clonePayment(p)
	after.Data = data
	if err := s.updatePayment(ctx, r, p, after); err != nil {
		return nil, err
	}
	return &markedWrite{payment: after, state: marked}, nil
}

func (s *Service) removeCapture(ctx context.Context, r *run, id string) error {
	capID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	capture, err := s.captures.GetByID(ctx, capID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.captures.Delete(ctx, capID); err != nil {
		return err
	}
	r.push(undoRecord{recreateCapture: capture})
	return nil
}

func (s *Service) removeRefund(ctx context.Context, r *run, id string) error {
	refID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	ref, err := s.refunds.GetByID(ctx, refID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.refunds.Delete(ctx, refID); err != nil {
		return err
	}
	r.push(undoRecord{recreateRefund: ref})
	return nil
}

func (s *Service) capturedTotal(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	caps, err := s.captures.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, c := range caps {
		total = total.Add(c.Amount)
	}
	return total, nil
}

func fullyCovered(total, target decimal.Decimal, currencyCode string) bool {
	return currency.RoundToPrecision(total, currencyCode).
		GreaterThanOrEqual(currency.RoundToPrecision(target, currencyCode))
}
