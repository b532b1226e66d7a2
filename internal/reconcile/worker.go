package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

type inboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.InboundNotification, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Worker drains the verified-notification inbox and feeds each row through
// one saga run. A row that fails reconciliation is marked failed after its
// run has been compensated; redelivery of the same provider event never gets
// this far because the inbox dedupes on insert.
type Worker struct {
	inbox     inboxStore
	saga      *Service
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewWorker(inbox inboxStore, saga *Service, logger *slog.Logger, interval time.Duration, batchSize int) *Worker {
	return &Worker{
		inbox:     inbox,
		saga:      saga,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("reconcile worker started", "interval", w.interval, "batch_size", w.batchSize)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	items, err := w.inbox.ClaimPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to claim pending notifications", "error", err)
		return
	}

	for _, item := range items {
		if err := w.processItem(ctx, item); err != nil {
			w.logger.Error("failed to process notification",
				"notification_id", item.ID,
				"psp_reference", item.PSPReference,
				"error", err,
			)
		}
	}
}

// notificationPayload is the stored wire shape of one provider event, as
// written by the webhook ingress.
type notificationPayload struct {
	PSPReference      string `json:"pspReference"`
	MerchantReference string `json:"merchantReference"`
	EventCode         string `json:"eventCode"`
	Success           bool   `json:"success"`
	Amount            struct {
		Currency string `json:"currency"`
		Value    int64  `json:"value"`
	} `json:"amount"`
	EventDate time.Time `json:"eventDate"`
	Reason    string    `json:"reason,omitempty"`
}

func (w *Worker) processItem(ctx context.Context, item domain.InboundNotification) error {
	var payload notificationPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		w.logger.Error("malformed notification payload", "notification_id", item.ID, "error", err)
		return w.inbox.MarkFailed(ctx, item.ID)
	}

	n := domain.Notification{
		PSPReference:      payload.PSPReference,
		MerchantReference: payload.MerchantReference,
		EventCode:         domain.EventCode(payload.EventCode),
		Success:           payload.Success,
		Currency:          payload.Amount.Currency,
		MinorUnitValue:    payload.Amount.Value,
		EventDate:         payload.EventDate,
		Reason:            payload.Reason,
	}

	if err := w.saga.Reconcile(ctx, n); err != nil {
		if markErr := w.inbox.MarkFailed(ctx, item.ID); markErr != nil {
			w.logger.Error("failed to mark notification failed", "notification_id", item.ID, "error", markErr)
		}
		return err
	}

	return w.inbox.MarkProcessed(ctx, item.ID)
}
