package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/ledger"
)

func TestSessionStatusFor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := domain.NewAmount("USD", decimal.RequireFromString("100"))

	auth := func(status ledger.EventStatus, date time.Time) ledger.Event {
		return ledger.Event{Name: ledger.EventAuthorisation, Status: status, Amount: amount, ProviderReference: "psp-" + string(status), Date: date}
	}

	t.Run("no payment", func(t *testing.T) {
		got := SessionStatusFor(nil, ledger.State{})
		assert.Equal(t, domain.SessionStatusPending, got)
	})

	t.Run("payment with succeeded authorisation", func(t *testing.T) {
		state := ledger.State{}.SetEvent(auth(ledger.StatusSucceeded, now))
		got := SessionStatusFor(&domain.Payment{}, state)
		assert.Equal(t, domain.SessionStatusAuthorized, got)
	})

	t.Run("latest authorisation failed", func(t *testing.T) {
		state := ledger.State{}.
			SetEvent(auth(ledger.StatusSucceeded, now)).
			SetEvent(auth(ledger.StatusFailed, now.Add(time.Minute)))
		got := SessionStatusFor(&domain.Payment{}, state)
		assert.Equal(t, domain.SessionStatusError, got)
	})

	t.Run("captured beats authorised", func(t *testing.T) {
		state := ledger.State{}.SetEvent(auth(ledger.StatusSucceeded, now))
		got := SessionStatusFor(&domain.Payment{CapturedAt: &now}, state)
		assert.Equal(t, domain.SessionStatusCaptured, got)
	})

	t.Run("canceled beats captured", func(t *testing.T) {
		state := ledger.State{}.SetEvent(auth(ledger.StatusSucceeded, now))
		got := SessionStatusFor(&domain.Payment{CapturedAt: &now, CanceledAt: &now}, state)
		assert.Equal(t, domain.SessionStatusCanceled, got)
	})
}
