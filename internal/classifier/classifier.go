// Package classifier maps raw provider notifications onto the eight
// reconciliation outcomes. Pure and total: anything outside the table is
// OutcomeUnclassified.
package classifier

import "github.com/solentpay/payment-reconciler/internal/domain"

type Outcome string

const (
	OutcomeAuthSuccess    Outcome = "authorisation_succeeded"
	OutcomeAuthFailed     Outcome = "authorisation_failed"
	OutcomeCancelSuccess  Outcome = "cancellation_succeeded"
	OutcomeCancelFailed   Outcome = "cancellation_failed"
	OutcomeCaptureSuccess Outcome = "capture_succeeded"
	OutcomeCaptureFailed  Outcome = "capture_failed"
	OutcomeRefundSuccess  Outcome = "refund_succeeded"
	OutcomeRefundFailed   Outcome = "refund_failed"
	OutcomeUnclassified   Outcome = "unclassified"
)

type key struct {
	code    domain.EventCode
	success bool
}

// The provider reports capture and refund failures two ways: the plain event
// code with success=false, or a dedicated *_FAILED code with success=true.
// Both rows normalize to the same outcome; provider quirk, not a pattern.
var table = map[key]Outcome{
	{domain.EventCodeAuthorisation, true}:  OutcomeAuthSuccess,
	{domain.EventCodeAuthorisation, false}: OutcomeAuthFailed,
	{domain.EventCodeCancellation, true}:   OutcomeCancelSuccess,
	{domain.EventCodeCancellation, false}:  OutcomeCancelFailed,
	{domain.EventCodeCapture, true}:        OutcomeCaptureSuccess,
	{domain.EventCodeCapture, false}:       OutcomeCaptureFailed,
	{domain.EventCodeCaptureFailed, true}:  OutcomeCaptureFailed,
	{domain.EventCodeCaptureFailed, false}: OutcomeCaptureFailed,
	{domain.EventCodeRefund, true}:         OutcomeRefundSuccess,
	{domain.EventCodeRefund, false}:        OutcomeRefundFailed,
	{domain.EventCodeRefundFailed, true}:   OutcomeRefundFailed,
	{domain.EventCodeRefundFailed, false}:  OutcomeRefundFailed,
}

func Classify(n domain.Notification) Outcome {
	if o, ok := table[key{n.EventCode, n.Success}]; ok {
		return o
	}
	return OutcomeUnclassified
}
