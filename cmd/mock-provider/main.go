// Command mock-provider simulates the payment provider's modification API
// for local development. It acknowledges capture, refund and cancel requests
// synchronously, then delivers the matching success notification to the
// reconciler's webhook endpoint after a short delay, signed the same way the
// real provider signs its deliveries.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solentpay/payment-reconciler/internal/logging"
)

type modificationRequest struct {
	OriginalReference string `json:"originalReference"`
	MerchantReference string `json:"merchantReference"`
	Currency          string `json:"currency"`
	Amount            int64  `json:"amount"`
}

type notificationItem struct {
	PSPReference      string    `json:"pspReference"`
	MerchantReference string    `json:"merchantReference"`
	EventCode         string    `json:"eventCode"`
	Success           bool      `json:"success"`
	Amount            amount    `json:"amount"`
	EventDate         time.Time `json:"eventDate"`
}

type amount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

type server struct {
	callbackURL   string
	webhookSecret string
	notifyDelay   time.Duration
	httpClient    *http.Client
}

func main() {
	logging.Init("mock-provider", os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))

	callbackURL := os.Getenv("CALLBACK_URL")
	if callbackURL == "" {
		callbackURL = "http://api:8080/webhooks/provider"
	}

	s := &server{
		callbackURL:   callbackURL,
		webhookSecret: os.Getenv("WEBHOOK_SECRET"),
		notifyDelay:   2 * time.Second,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /capture", s.handleModification("CAPTURE"))
	mux.HandleFunc("POST /refund", s.handleModification("REFUND"))
	mux.HandleFunc("POST /cancel", s.handleModification("CANCELLATION"))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})

	addr := ":8081"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	slog.Info("mock provider started", "addr", addr, "callback_url", callbackURL)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (s *server) handleModification(eventCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req modificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.MerchantReference == "" || req.Currency == "" {
			http.Error(w, `{"error":"merchantReference and currency are required"}`, http.StatusBadRequest)
			return
		}

		pspReference := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

		slog.Info("modification accepted",
			"event_code", eventCode,
			"psp_reference", pspReference,
			"merchant_reference", req.MerchantReference,
			"amount", req.Amount,
		)

		go s.deliverNotification(eventCode, pspReference, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"pspReference": pspReference,
			"response":     fmt.Sprintf("[%s-received]", strings.ToLower(eventCode)),
		}); err != nil {
			slog.Error("failed to write modification response", "error", err)
		}
	}
}

func (s *server) deliverNotification(eventCode, pspReference string, req modificationRequest) {
	time.Sleep(s.notifyDelay)

	body, err := json.Marshal(map[string]any{
		"notificationItems": []notificationItem{{
			PSPReference:      pspReference,
			MerchantReference: req.MerchantReference,
			EventCode:         eventCode,
			Success:           true,
			Amount:            amount{Currency: req.Currency, Value: req.Amount},
			EventDate:         time.Now().UTC(),
		}},
	})
	if err != nil {
		slog.Error("failed to encode notification", "error", err)
		return
	}

	httpReq, err := http.NewRequest(http.MethodPost, s.callbackURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build notification request", "error", err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-Signature", sign(body, s.webhookSecret))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("failed to deliver notification",
			"psp_reference", pspReference,
			"error", err,
		)
		return
	}
	defer resp.Body.Close()

	slog.Info("notification delivered",
		"psp_reference", pspReference,
		"event_code", eventCode,
		"status", resp.StatusCode,
	)
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
