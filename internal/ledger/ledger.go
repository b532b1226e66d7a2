// Package ledger holds the provider-event log stored inside a payment's data
// column. State is a value type: every operation returns a derived copy and
// leaves the receiver untouched, so reconciliation steps can keep both the
// before and after views for compensation.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

type EventName string

const (
	EventAuthorisation EventName = "AUTHORISATION"
	EventCancellation  EventName = "CANCELLATION"
	EventCapture       EventName = "CAPTURE"
	EventRefund        EventName = "REFUND"
)

type EventStatus string

const (
	StatusRequested EventStatus = "REQUESTED"
	StatusSucceeded EventStatus = "SUCCEEDED"
	StatusFailed    EventStatus = "FAILED"
)

// Event is one provider-reported outcome. ID carries the id of the capture
// or refund sub-record the event produced, when it produced one.
type Event struct {
	ID                string        `json:"id,omitempty"`
	Name              EventName     `json:"name"`
	Status            EventStatus   `json:"status"`
	Amount            domain.Amount `json:"amount"`
	ProviderReference string        `json:"providerReference"`
	MerchantReference string        `json:"merchantReference,omitempty"`
	Date              time.Time     `json:"date"`
	Message           string        `json:"message,omitempty"`
}

// State is the ledger document: {reference, amount, events} plus the
// transient webhook marker, wire-compatible with the stored JSON. Provider
// fields this package does not model are carried through untouched in extra.
type State struct {
	Reference string
	Amount    domain.Amount
	Events    []Event
	Webhook   bool

	extra map[string]json.RawMessage
}

func New(reference string, amount domain.Amount) State {
	return State{Reference: reference, Amount: amount}
}

// Parse decodes a payment's raw data column. Nil or empty input yields the
// zero State.
func Parse(data []byte) (State, error) {
	var s State
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("Parse: %w", err)
	}
	return s, nil
}

func (s *State) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	known := map[string]any{
		"reference": &s.Reference,
		"amount":    &s.Amount,
		"events":    &s.Events,
		"webhook":   &s.Webhook,
	}
	for key, dst := range known {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
			delete(raw, key)
		}
	}
	if len(raw) > 0 {
		s.extra = raw
	}
	return nil
}

func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.extra)+4)
	for k, v := range s.extra {
		out[k] = v
	}
	out["reference"] = s.Reference
	out["amount"] = s.Amount
	out["events"] = s.Events
	if s.Webhook {
		out["webhook"] = true
	}
	return json.Marshal(out)
}

func (s State) clone() State {
	out := s
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		copy(out.Events, s.Events)
	}
	if s.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			out.extra[k] = v
		}
	}
	return out
}

// SetEvent upserts an event keyed by (name, providerReference): an entry with
// the same key is replaced, never duplicated. Re-delivery of a notification
// therefore degenerates to rewriting the same entry.
func (s State) SetEvent(e Event) State {
	out := s.clone()
	for i, existing := range out.Events {
		if existing.Name == e.Name && existing.ProviderReference == e.ProviderReference {
			out.Events[i] = e
			return out
		}
	}
	out.Events = append(out.Events, e)
	return out
}

// EventByProviderRef finds the event recorded for a provider reference,
// regardless of name.
func (s State) EventByProviderRef(ref string) (Event, bool) {
	for _, e := range s.Events {
		if e.ProviderReference == ref {
			return e, true
		}
	}
	return Event{}, false
}

func (s State) IsAuthorised() bool {
	for _, e := range s.Events {
		if e.Name == EventAuthorisation && e.Status == StatusSucceeded {
			return true
		}
	}
	return false
}

// Authorisation returns the succeeded authorisation event. Cancellation,
// capture and refund reconciliation all require it first.
func (s State) Authorisation() (Event, error) {
	for _, e := range s.Events {
		if e.Name == EventAuthorisation && e.Status == StatusSucceeded {
			return e, nil
		}
	}
	return Event{}, fmt.Errorf("Authorisation: %w", domain.ErrNotAuthorised)
}

// LatestAuthorisation returns the most recent authorisation event of any
// status, used to derive a session's display state.
func (s State) LatestAuthorisation() (Event, bool) {
	var (
		found  bool
		latest Event
	)
	for _, e := range s.Events {
		if e.Name != EventAuthorisation {
			continue
		}
		if !found || e.Date.After(latest.Date) {
			latest = e
			found = true
		}
	}
	return latest, found
}

// WithWebhook marks the state as mid-flight in an async reconciliation, so
// rollback logic can tell notification-driven mutations apart from
// synchronous-response ones.
func (s State) WithWebhook() State {
	out := s.clone()
	out.Webhook = true
	return out
}

func (s State) ClearWebhook() State {
	out := s.clone()
	out.Webhook = false
	return out
}

// Encode serializes the state back into the payment data column format.
func (s State) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return b, nil
}
