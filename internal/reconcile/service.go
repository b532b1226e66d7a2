// Package reconcile applies asynchronous provider notifications to payment
// records. Each notification is one saga run: the outcome-specific step, then
// unconditionally the session synchronizer and the collection aggregator.
// Every mutation pushes an undo record; a failure anywhere compensates the
// completed part of the run in reverse order before the error surfaces.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/classifier"
	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/logging"
)

type paymentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
}

type captureStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Capture, error)
	Create(ctx context.Context, c *domain.Capture) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Capture, error)
}

type refundStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	Create(ctx context.Context, r *domain.Refund) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error)
}

type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSession, error)
	ListByCollectionID(ctx context.Context, collectionID uuid.UUID) ([]domain.PaymentSession, error)
	Update(ctx context.Context, s *domain.PaymentSession) error
}

type collectionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentCollection, error)
	Update(ctx context.Context, c *domain.PaymentCollection) error
}

type Service struct {
	payments    paymentStore
	captures    captureStore
	refunds     refundStore
	sessions    sessionStore
	collections collectionStore
	locks       *refLocks
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(
	payments paymentStore,
	captures captureStore,
	refunds refundStore,
	sessions sessionStore,
	collections collectionStore,
	logger *slog.Logger,
) *Service {
	return &Service{
		payments:    payments,
		captures:    captures,
		refunds:     refunds,
		sessions:    sessions,
		collections: collections,
		locks:       newRefLocks(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile runs one saga for one notification. Duplicate deliveries are the
// steady state, not an error: they degenerate to rewriting the same ledger
// entry. Runs for the same merchant reference are serialized.
func (s *Service) Reconcile(ctx context.Context, n domain.Notification) (err error) {
	unlock := s.locks.lock(n.MerchantReference)
	defer unlock()

	outcome := classifier.Classify(n)
	log := logging.FromContext(ctx).With(
		"psp_reference", n.PSPReference,
		"merchant_reference", n.MerchantReference,
		"outcome", string(outcome),
	)
	ctx = logging.WithLogger(ctx, log)

	sessionID, perr := uuid.Parse(n.MerchantReference)
	if perr != nil {
		return fmt.Errorf("Reconcile: merchant reference %q: %w", n.MerchantReference, domain.ErrInvalidArgument)
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("Reconcile: %w", err)
	}

	r := &run{}
	defer func() {
		if err != nil && len(r.undos) > 0 {
			log.Error("reconciliation failed, compensating", "error", err, "applied_steps", len(r.undos))
			s.compensate(ctx, r.undos)
		}
	}()

	if outcome == classifier.OutcomeUnclassified {
		log.Info("unclassified notification, no reconciliation step")
	} else {
		if err = s.applyOutcome(ctx, r, outcome, session, n); err != nil {
			return fmt.Errorf("Reconcile: %w", err)
		}
	}

	// The session sync and collection aggregation are not conditional on the
	// branch above: they resynchronize derived state on every run.
	if err = s.syncSession(ctx, r, session.ID); err != nil {
		return fmt.Errorf("Reconcile: sync session: %w", err)
	}
	if err = s.aggregateCollection(ctx, r, session.CollectionID, outcome); err != nil {
		return fmt.Errorf("Reconcile: aggregate collection: %w", err)
	}

	log.Info("reconciliation complete")
	return nil
}

// updatePayment writes the new payment value and records the prior one for
// compensation.
func (s *Service) updatePayment(ctx context.Context, r *run, before, after *domain.Payment) error {
	if err := s.payments.Update(ctx, after); err != nil {
		return err
	}
	r.push(undoRecord{restorePayment: before})
	return nil
}

func clonePayment(p *domain.Payment) *domain.Payment {
	out := *p
	if p.Data != nil {
		out.Data = append([]byte(nil), p.Data...)
	}
	if p.CapturedAt != nil {
		t := *p.CapturedAt
		out.CapturedAt = &t
	}
	if p.CanceledAt != nil {
		t := *p.CanceledAt
		out.CanceledAt = &t
	}
	return &out
}

func cloneSession(sess *domain.PaymentSession) *domain.PaymentSession {
	out := *sess
	if sess.PaymentID != nil {
		id := *sess.PaymentID
		out.PaymentID = &id
	}
	return &out
}

func cloneCollection(c *domain.PaymentCollection) *domain.PaymentCollection {
	out := *c
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
