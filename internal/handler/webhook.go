package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/logging"
)

type notificationInbox interface {
	Create(ctx context.Context, n *domain.InboundNotification) error
}

// WebhookHandler is the only ingress this service exposes: it verifies the
// provider's HMAC signature and drops each notification item into the inbox.
// Reconciliation happens later, in the worker; the provider gets its 200
// as soon as the delivery is durably stored.
type WebhookHandler struct {
	inbox  notificationInbox
	secret string
}

func NewWebhookHandler(inbox notificationInbox, secret string) *WebhookHandler {
	return &WebhookHandler{inbox: inbox, secret: secret}
}

type notificationItem struct {
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

type webhookPayload struct {
	NotificationItems []notificationItem `json:"notificationItems"`
}

func (i notificationItem) validate(idx int) []FieldError {
	var errs []FieldError

	field := func(name string) string {
		return "notificationItems[" + strconv.Itoa(idx) + "]." + name
	}

	if i.PSPReference == "" {
		errs = append(errs, FieldError{Field: field("pspReference"), Message: "required"})
	}
	if i.MerchantReference == "" {
		errs = append(errs, FieldError{Field: field("merchantReference"), Message: "required"})
	} else if _, err := uuid.Parse(i.MerchantReference); err != nil {
		errs = append(errs, FieldError{Field: field("merchantReference"), Message: "must be a valid UUID"})
	}
	if i.EventCode == "" {
		errs = append(errs, FieldError{Field: field("eventCode"), Message: "required"})
	}

	return errs
}

func (h *WebhookHandler) ReceiveNotifications(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if len(payload.NotificationItems) == 0 {
		RespondValidationError(w, []FieldError{{Field: "notificationItems", Message: "required"}})
		return
	}

	var fields []FieldError
	for idx, item := range payload.NotificationItems {
		fields = append(fields, item.validate(idx)...)
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	stored, duplicates := 0, 0
	for _, item := range payload.NotificationItems {
		itemBody, err := json.Marshal(item)
		if err != nil {
			log.Error("failed to re-encode notification item", "error", err)
			RespondAppError(w, ErrInternalError, nil)
			return
		}

		n := &domain.InboundNotification{
			ID:           uuid.New(),
			PSPReference: item.PSPReference,
			EventCode:    domain.EventCode(item.EventCode),
			Payload:      itemBody,
			Status:       domain.NotificationStatusPending,
			CreatedAt:    time.Now().UTC(),
		}

		if err := h.inbox.Create(r.Context(), n); err != nil {
			if errors.Is(err, domain.ErrDuplicateNotification) {
				log.Info("duplicate notification received",
					"psp_reference", item.PSPReference,
					"event_code", item.EventCode,
				)
				duplicates++
				continue
			}
			log.Error("failed to store notification", "error", err)
			RespondAppError(w, ErrInternalError, nil)
			return
		}

		log.Info("notification stored",
			"notification_id", n.ID,
			"psp_reference", item.PSPReference,
			"event_code", item.EventCode,
			"merchant_reference", item.MerchantReference,
		)
		stored++
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"status":     "received",
		"stored":     stored,
		"duplicates": duplicates,
	})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
