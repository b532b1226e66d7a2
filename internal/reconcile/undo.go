package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/logging"
)

// undoRecord captures the inverse of one applied action: exactly one field is
// set. Steps push records as they go; compensation replays them newest-first,
// so a failed run leaves every entity as it was before the run started.
type undoRecord struct {
	restorePayment    *domain.Payment
	deleteCaptureID   *uuid.UUID
	deleteRefundID    *uuid.UUID
	recreateCapture   *domain.Capture
	recreateRefund    *domain.Refund
	restoreSession    *domain.PaymentSession
	restoreCollection *domain.PaymentCollection
}

type run struct {
	undos []undoRecord
}

func (r *run) push(rec undoRecord) {
	r.undos = append(r.undos, rec)
}

func (s *Service) compensate(ctx context.Context, recs []undoRecord) {
	log := logging.FromContext(ctx)

	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]

		var err error
		switch {
		case rec.restorePayment != nil:
			err = s.payments.Update(ctx, rec.restorePayment)
		case rec.deleteCaptureID != nil:
			err = s.captures.Delete(ctx, *rec.deleteCaptureID)
		case rec.deleteRefundID != nil:
			err = s.refunds.Delete(ctx, *rec.deleteRefundID)
		case rec.recreateCapture != nil:
			err = s.captures.Create(ctx, rec.recreateCapture)
		case rec.recreateRefund != nil:
			err = s.refunds.Create(ctx, rec.recreateRefund)
		case rec.restoreSession != nil:
			err = s.sessions.Update(ctx, rec.restoreSession)
		case rec.restoreCollection != nil:
			err = s.collections.Update(ctx, rec.restoreCollection)
		}
		if err != nil {
			// Keep unwinding: a record further down may still apply cleanly.
			log.Error("compensation step failed", "step", i, "error", err)
		}
	}
}
