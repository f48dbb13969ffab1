package messaging

import (
	"context"
	"time"
)

// Event type names emitted by participants. The orchestrator matches on
// these to decide forward-vs-compensate transitions.
const (
	// EventTransferValidated confirms the transfer input is valid.
	EventTransferValidated = "TransferValidatedEvent"
	// EventInvalidAccount rejects a transfer for a blank account id.
	EventInvalidAccount = "InvalidAccountEvent"
	// EventInvalidAmount rejects a transfer for a non-positive amount.
	EventInvalidAmount = "InvalidAmountEvent"
	// EventOtherReasonValidationFailed reports an unexpected validator failure.
	EventOtherReasonValidationFailed = "OtherReasonValidationFailedEvent"
	// EventTransferSucceeded confirms the funds moved.
	EventTransferSucceeded = "TransferSucceededEvent"
	// EventTransferCanceled confirms a compensating reversal.
	EventTransferCanceled = "TransferCanceledEvent"
	// EventTransferNotCanceled reports a failed compensating reversal.
	EventTransferNotCanceled = "TransferNotCanceledEvent"
	// EventOtherReasonTransferFailed reports an unexpected transfer failure.
	EventOtherReasonTransferFailed = "OtherReasonTransferFailedEvent"
	// EventReceiptIssued confirms the receipt was signed.
	EventReceiptIssued = "ReceiptIssuedEvent"
	// EventOtherReasonReceiptFailed reports an unexpected receipt failure.
	EventOtherReasonReceiptFailed = "OtherReasonReceiptFailedEvent"
)

// EventTypes lists every event a participant can emit.
func EventTypes() []string {
	return []string{
		EventTransferValidated,
		EventInvalidAccount,
		EventInvalidAmount,
		EventOtherReasonValidationFailed,
		EventTransferSucceeded,
		EventTransferCanceled,
		EventTransferNotCanceled,
		EventOtherReasonTransferFailed,
		EventReceiptIssued,
		EventOtherReasonReceiptFailed,
	}
}

// ErrorDetails carries the reason of a typed failure event.
type ErrorDetails struct {
	Message string `json:"message"`
}

// EventContent is the optional payload of an event: error details for
// failure events, a receipt signature for EventReceiptIssued.
type EventContent struct {
	Error            *ErrorDetails `json:"error,omitempty"`
	ReceiptSignature string        `json:"receiptSignature,omitempty"`
}

// Event is a header plus optional content, produced only by participants
// and consumed only by the orchestrator.
type Event struct {
	Header  MessageHeader `json:"header"`
	Content *EventContent `json:"content,omitempty"`
}

// NewEvent builds a bare confirmation event.
func NewEvent(transactionID, eventType string, source Source, createdAt time.Time) Event {
	return Event{
		Header: NewHeader(transactionID, eventType, source, createdAt),
	}
}

// NewFailureEvent builds a typed failure event carrying the reason message.
func NewFailureEvent(transactionID, eventType string, source Source, reason string, createdAt time.Time) Event {
	return Event{
		Header:  NewHeader(transactionID, eventType, source, createdAt),
		Content: &EventContent{Error: &ErrorDetails{Message: reason}},
	}
}

// NewReceiptIssuedEvent builds the receipt confirmation carrying the
// computed signature.
func NewReceiptIssuedEvent(transactionID, signature string, createdAt time.Time) Event {
	return Event{
		Header:  NewHeader(transactionID, EventReceiptIssued, SourceReceipt, createdAt),
		Content: &EventContent{ReceiptSignature: signature},
	}
}

// Producer publishes one participant event towards the orchestrator.
type Producer interface {
	Produce(ctx context.Context, event Event) error
}
