package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solentpay/payment-reconciler/internal/ledger"
	"github.com/solentpay/payment-reconciler/internal/logging"
)

type modificationService interface {
	RequestCapture(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*ledger.Event, error)
	RequestRefund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*ledger.Event, error)
	RequestCancel(ctx context.Context, paymentID uuid.UUID) (*ledger.Event, error)
}

type ModificationHandler struct {
	modifications modificationService
}

func NewModificationHandler(modifications modificationService) *ModificationHandler {
	return &ModificationHandler{modifications: modifications}
}

type modificationRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type modificationResponse struct {
	PSPReference string `json:"psp_reference"`
	Status       string `json:"status"`
}

func (h *ModificationHandler) Capture(w http.ResponseWriter, r *http.Request) {
	h.handleAmountModification(w, r, h.modifications.RequestCapture)
}

func (h *ModificationHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.handleAmountModification(w, r, h.modifications.RequestRefund)
}

func (h *ModificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	ev, err := h.modifications.RequestCancel(r.Context(), paymentID)
	if err != nil {
		log.Warn("cancel request failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, modificationResponse{
		PSPReference: ev.ProviderReference,
		Status:       string(ev.Status),
	})
}

func (h *ModificationHandler) handleAmountModification(
	w http.ResponseWriter,
	r *http.Request,
	request func(context.Context, uuid.UUID, decimal.Decimal) (*ledger.Event, error),
) {
	log := logging.FromContext(r.Context())

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "id", Message: "must be a valid UUID"}})
		return
	}

	var req modificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Amount.IsNegative() {
		RespondAppError(w, ErrInvalidAmount, nil)
		return
	}

	ev, err := request(r.Context(), paymentID, req.Amount)
	if err != nil {
		log.Warn("modification request failed", "payment_id", paymentID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusAccepted, modificationResponse{
		PSPReference: ev.ProviderReference,
		Status:       string(ev.Status),
	})
}
