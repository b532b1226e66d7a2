package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventCode string

const (
	EventCodeAuthorisation EventCode = "AUTHORISATION"
	EventCodeCancellation  EventCode = "CANCELLATION"
	EventCodeCapture       EventCode = "CAPTURE"
	EventCodeCaptureFailed EventCode = "CAPTURE_FAILED"
	EventCodeRefund        EventCode = "REFUND"
	EventCodeRefundFailed  EventCode = "REFUND_FAILED"
)

// Notification is one provider event, delivered at least once and in no
// particular order. PSPReference is the provider's unique id for the event
// instance; MerchantReference is the payment session it belongs to.
type Notification struct {
	PSPReference      string
	MerchantReference string
	EventCode         EventCode
	Success           bool
	Currency          string
	MinorUnitValue    int64
	EventDate         time.Time
	Reason            string
}

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusProcessing NotificationStatus = "processing"
	NotificationStatusProcessed  NotificationStatus = "processed"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// InboundNotification is an inbox row: the verified raw delivery waiting to
// be reconciled. Uniqueness on (psp_reference, event_code) makes redelivery
// a no-op at the door.
type InboundNotification struct {
	ID           uuid.UUID
	PSPReference string
	EventCode    EventCode
	Payload      json.RawMessage
	Status       NotificationStatus
	Attempts     int
	LastAttempt  *time.Time
	CreatedAt    time.Time
}
