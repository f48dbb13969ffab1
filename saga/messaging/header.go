// Package messaging defines the wire contract shared by the orchestrator
// and every participant: the message header, the closed sets of command and
// event types, and the envelope used to defer deserialization until a
// concrete type is requested.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Source is the logical name of a message emitter.
type Source string

const (
	// SourceOrchestrator marks messages produced by the saga coordinator.
	SourceOrchestrator Source = "Orchestrator"
	// SourceValidator marks messages produced by the validation participant.
	SourceValidator Source = "Validator"
	// SourceTransfer marks messages produced by the funds-transfer participant.
	SourceTransfer Source = "Transfer"
	// SourceReceipt marks messages produced by the receipt participant.
	SourceReceipt Source = "Receipt"
)

// MessageHeader rides on every command and event of a saga instance.
//
// TransactionID is stable across the whole saga and is the correlation and
// idempotency key. MessageID is unique per message, including republished
// copies of the same logical message.
type MessageHeader struct {
	TransactionID string    `json:"transactionId"`
	MessageID     string    `json:"messageId"`
	MessageType   string    `json:"messageType"`
	Source        Source    `json:"source"`
	CreationDate  time.Time `json:"creationDate"`
}

// NewHeader builds a header with a fresh message id. The creation time is
// supplied by the caller so replayed orchestrations stay deterministic.
func NewHeader(transactionID, messageType string, source Source, createdAt time.Time) MessageHeader {
	return MessageHeader{
		TransactionID: transactionID,
		MessageID:     uuid.NewString(),
		MessageType:   messageType,
		Source:        source,
		CreationDate:  createdAt,
	}
}

// Regenerate returns a copy of the header with a fresh message id and
// creation date; correlation fields are preserved.
func (h MessageHeader) Regenerate(createdAt time.Time) MessageHeader {
	return NewHeader(h.TransactionID, h.MessageType, h.Source, createdAt)
}
