package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solentpay/payment-reconciler/internal/currency"
	"github.com/solentpay/payment-reconciler/internal/domain"
	"github.com/solentpay/payment-reconciler/internal/ledger"
	"github.com/solentpay/payment-reconciler/internal/logging"
	"github.com/solentpay/payment-reconciler/internal/provider"
)

// ModificationService drives the synchronous half of the flow: it asks the
// provider to capture, refund or cancel and records a REQUESTED ledger event
// under the returned reference. No money has moved at that point. The
// asynchronous notification for the same reference later confirms the
// outcome, and the saga's success handler replaces the REQUESTED entry with
// the applied one, creating the capture/refund record and timestamps then.
type ModificationService struct {
	payments paymentStore
	provider provider.Client
}

func NewModificationService(payments paymentStore, client provider.Client) *ModificationService {
	return &ModificationService{payments: payments, provider: client}
}

func (s *ModificationService) RequestCapture(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*ledger.Event, error) {
	return s.request(ctx, paymentID, amount, ledger.EventCapture)
}

func (s *ModificationService) RequestRefund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) (*ledger.Event, error) {
	return s.request(ctx, paymentID, amount, ledger.EventRefund)
}

func (s *ModificationService) RequestCancel(ctx context.Context, paymentID uuid.UUID) (*ledger.Event, error) {
	return s.request(ctx, paymentID, decimal.Zero, ledger.EventCancellation)
}

func (s *ModificationService) request(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, name ledger.EventName) (*ledger.Event, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	state, err := ledger.Parse(p.Data)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if _, err := state.Authorisation(); err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	if name == ledger.EventCancellation || amount.IsZero() {
		amount = p.Amount
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("request: amount must be positive: %w", domain.ErrInvalidArgument)
	}

	req := provider.ModificationRequest{
		PaymentReference:  state.Reference,
		MerchantReference: p.SessionID.String(),
		Currency:          p.CurrencyCode,
		Amount:            currency.ToMinorUnit(amount, p.CurrencyCode),
	}

	var result *provider.ModificationResult
	switch name {
	case ledger.EventCapture:
		result, err = s.provider.Capture(ctx, req)
	case ledger.EventRefund:
		result, err = s.provider.Refund(ctx, req)
	case ledger.EventCancellation:
		result, err = s.provider.Cancel(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	ev := ledger.Event{
		Name:              name,
		Status:            ledger.StatusRequested,
		Amount:            domain.NewAmount(p.CurrencyCode, amount),
		ProviderReference: result.PSPReference,
		MerchantReference: p.SessionID.String(),
		Date:              time.Now().UTC(),
	}
	updated := state.SetEvent(ev)
	data, err := updated.Encode()
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	after := clonePayment(p)
	after.Data = data
	if err := s.payments.Update(ctx, after); err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	log.Info("modification requested",
		"payment_id", p.ID,
		"modification", string(name),
		"psp_reference", result.PSPReference,
	)
	return &ev, nil
}
