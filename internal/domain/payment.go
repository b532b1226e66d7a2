package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is the durable record reconciliation mutates. Data holds the
// provider-event ledger as an opaque JSON document; captures and refunds are
// the source of truth for money actually moved.
type Payment struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	CurrencyCode string
	Amount       decimal.Decimal
	Data         json.RawMessage
	CapturedAt   *time.Time
	CanceledAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Capture struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	CreatedBy string
	CreatedAt time.Time
}

type Refund struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	CreatedBy string
	CreatedAt time.Time
}
