package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solentpay/payment-reconciler/internal/classifier"
	"github.com/solentpay/payment-reconciler/internal/currency"
	"github.com/solentpay/payment-reconciler/internal/domain"
)

// Aggregate recomputes a collection's derived amounts and lifecycle status
// from its sessions and the captured/refunded totals of their payments. Pure:
// running it twice over the same inputs yields the same result, and the
// status is never incrementally patched state that can drift.
//
// Threshold comparisons use amounts rounded to the currency's minor-unit
// precision so float noise cannot hold a collection at "not yet complete".
func Aggregate(
	col domain.PaymentCollection,
	sessions []domain.PaymentSession,
	captured, refunded decimal.Decimal,
	canceled bool,
	now time.Time,
) domain.PaymentCollection {
	authorized := decimal.Zero
	for _, sess := range sessions {
		if sess.Status == domain.SessionStatusAuthorized {
			authorized = authorized.Add(sess.Amount)
		}
	}

	out := col
	out.AuthorizedAmount = authorized
	out.CapturedAmount = captured
	out.RefundedAmount = refunded

	target := currency.RoundToPrecision(col.Amount, col.CurrencyCode)
	auth := currency.RoundToPrecision(authorized, col.CurrencyCode)
	capt := currency.RoundToPrecision(captured, col.CurrencyCode)

	status := domain.CollectionStatusNotPaid
	if len(sessions) > 0 {
		status = domain.CollectionStatusAwaiting
	}
	switch {
	case auth.IsPositive() && auth.GreaterThanOrEqual(target):
		status = domain.CollectionStatusAuthorized
	case auth.IsPositive():
		status = domain.CollectionStatusPartiallyAuthorized
	}
	if capt.IsPositive() {
		status = domain.CollectionStatusPartiallyCaptured
		if capt.GreaterThanOrEqual(target) {
			status = domain.CollectionStatusCompleted
			if out.CompletedAt == nil {
				t := now
				out.CompletedAt = &t
			}
		}
	}
	if canceled {
		status = domain.CollectionStatusCanceled
	}
	out.Status = status
	return out
}

func (s *Service) aggregateCollection(ctx context.Context, r *run, collectionID uuid.UUID, outcome classifier.Outcome) error {
	col, err := s.collections.GetByID(ctx, collectionID)
	if err != nil {
		return err
	}
	sessions, err := s.sessions.ListByCollectionID(ctx, collectionID)
	if err != nil {
		return err
	}

	captured, refunded := decimal.Zero, decimal.Zero
	for _, sess := range sessions {
		if sess.PaymentID == nil {
			continue
		}
		caps, err := s.captures.ListByPaymentID(ctx, *sess.PaymentID)
		if err != nil {
			return err
		}
		for _, c := range caps {
			captured = captured.Add(c.Amount)
		}
		refs, err := s.refunds.ListByPaymentID(ctx, *sess.PaymentID)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			refunded = refunded.Add(ref.Amount)
		}
	}

	// A successful cancellation forces CANCELED regardless of the amounts,
	// and a canceled collection stays canceled.
	canceled := outcome == classifier.OutcomeCancelSuccess ||
		col.Status == domain.CollectionStatusCanceled

	updated := Aggregate(*col, sessions, captured, refunded, canceled, s.now())
	if collectionsEqual(*col, updated) {
		return nil
	}

	before := cloneCollection(col)
	if err := s.collections.Update(ctx, &updated); err != nil {
		return err
	}
	r.push(undoRecord{restoreCollection: before})
	return nil
}

func collectionsEqual(a, b domain.PaymentCollection) bool {
	if a.Status != b.Status {
		return false
	}
	if !a.AuthorizedAmount.Equal(b.AuthorizedAmount) ||
		!a.CapturedAmount.Equal(b.CapturedAmount) ||
		!a.RefundedAmount.Equal(b.RefundedAmount) {
		return false
	}
	if (a.CompletedAt == nil) != (b.CompletedAt == nil) {
		return false
	}
	return true
}
