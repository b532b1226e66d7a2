package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

const testWebhookSecret = "test-secret-key"

type mockInbox struct {
	created []*domain.InboundNotification
	errs    []error
}

func (m *mockInbox) Create(_ context.Context, n *domain.InboundNotification) error {
	m.created = append(m.created, n)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func notificationBody(items ...notificationItem) string {
	b, _ := json.Marshal(webhookPayload{NotificationItems: items})
	return string(b)
}

func validItem() notificationItem {
	item := notificationItem{
		PSPReference:      "psp-1",
		MerchantReference: uuid.NewString(),
		EventCode:         "AUTHORISATION",
		Success:           true,
		EventDate:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	item.Amount.Currency = "USD"
	item.Amount.Value = 10000
	return item
}

func postWebhook(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/provider", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ReceiveNotifications(rec, req)
	return rec
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"notificationItems":[]}`,
			signature: signPayload(`{"notificationItems":[]}`, testWebhookSecret),
			secret:    testWebhookSecret,
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"notificationItems":[]}`,
			signature: "deadbeef",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "empty signature",
			body:      `{"notificationItems":[]}`,
			signature: "",
			secret:    testWebhookSecret,
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"notificationItems":[]}`,
			signature: signPayload(`{"notificationItems":[]}`, "other-secret"),
			secret:    testWebhookSecret,
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := verifyHMAC([]byte(tc.body), tc.signature, tc.secret)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReceiveNotifications(t *testing.T) {
	inbox := &mockInbox{}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	item := validItem()
	body := notificationBody(item)
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	require.Len(t, inbox.created, 1)
	stored := inbox.created[0]
	assert.Equal(t, "psp-1", stored.PSPReference)
	assert.Equal(t, domain.EventCode("AUTHORISATION"), stored.EventCode)
	assert.Equal(t, domain.NotificationStatusPending, stored.Status)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(stored.Payload, &payload))
	assert.Equal(t, item.MerchantReference, payload["merchantReference"])
}

func TestReceiveNotificationsRejectsBadSignature(t *testing.T) {
	inbox := &mockInbox{}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	body := notificationBody(validItem())
	rec := postWebhook(h, body, "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, inbox.created)
}

func TestReceiveNotificationsRejectsMissingSignature(t *testing.T) {
	inbox := &mockInbox{}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	rec := postWebhook(h, notificationBody(validItem()), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReceiveNotificationsValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*notificationItem)
		wantField string
	}{
		{
			name:      "missing psp reference",
			mutate:    func(i *notificationItem) { i.PSPReference = "" },
			wantField: "notificationItems[0].pspReference",
		},
		{
			name:      "missing merchant reference",
			mutate:    func(i *notificationItem) { i.MerchantReference = "" },
			wantField: "notificationItems[0].merchantReference",
		},
		{
			name:      "merchant reference not a uuid",
			mutate:    func(i *notificationItem) { i.MerchantReference = "order-123" },
			wantField: "notificationItems[0].merchantReference",
		},
		{
			name:      "missing event code",
			mutate:    func(i *notificationItem) { i.EventCode = "" },
			wantField: "notificationItems[0].eventCode",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inbox := &mockInbox{}
			h := NewWebhookHandler(inbox, testWebhookSecret)

			item := validItem()
			tc.mutate(&item)
			body := notificationBody(item)
			rec := postWebhook(h, body, signPayload(body, testWebhookSecret))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantField)
			assert.Empty(t, inbox.created)
		})
	}
}

func TestReceiveNotificationsEmptyBatch(t *testing.T) {
	inbox := &mockInbox{}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	body := `{"notificationItems":[]}`
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Duplicate deliveries are acknowledged, not errored: the provider must stop
// resending.
func TestReceiveNotificationsCountsDuplicates(t *testing.T) {
	inbox := &mockInbox{errs: []error{nil, fmt.Errorf("insert: %w", domain.ErrDuplicateNotification)}}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	first := validItem()
	second := validItem()
	second.PSPReference = "psp-2"

	body := notificationBody(first, second)
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Stored     int `json:"stored"`
			Duplicates int `json:"duplicates"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Stored)
	assert.Equal(t, 1, resp.Data.Duplicates)
}

func TestReceiveNotificationsStorageFailure(t *testing.T) {
	inbox := &mockInbox{errs: []error{fmt.Errorf("connection reset")}}
	h := NewWebhookHandler(inbox, testWebhookSecret)

	body := notificationBody(validItem())
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
