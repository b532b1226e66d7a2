package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusAuthorized SessionStatus = "authorized"
	SessionStatusError      SessionStatus = "error"
	SessionStatusCaptured   SessionStatus = "captured"
	SessionStatusCanceled   SessionStatus = "canceled"
)

// PaymentSession is one payment attempt inside a collection. PaymentID is
// nil until the attempt has been authorized and a payment record exists.
type PaymentSession struct {
	ID           uuid.UUID
	CollectionID uuid.UUID
	CurrencyCode string
	Amount       decimal.Decimal
	Status       SessionStatus
	PaymentID    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CollectionStatus string

const (
	CollectionStatusNotPaid             CollectionStatus = "not_paid"
	CollectionStatusAwaiting            CollectionStatus = "awaiting"
	CollectionStatusPartiallyAuthorized CollectionStatus = "partially_authorized"
	CollectionStatusAuthorized          CollectionStatus = "authorized"
	CollectionStatusPartiallyCaptured   CollectionStatus = "partially_captured"
	CollectionStatusCompleted           CollectionStatus = "completed"
	CollectionStatusCanceled            CollectionStatus = "canceled"
)

// PaymentCollection is the aggregate root for one checkout. The derived
// amounts and status are recomputed after every reconciliation run, never
// patched incrementally.
type PaymentCollection struct {
	ID               uuid.UUID
	CurrencyCode     string
	Amount           decimal.Decimal
	AuthorizedAmount decimal.Decimal
	CapturedAmount   decimal.Decimal
	RefundedAmount   decimal.Decimal
	Status           CollectionStatus
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
