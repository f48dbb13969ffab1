package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyBody is returned when an envelope is built from an empty body.
	ErrEmptyBody = errors.New("envelope body is empty")
	// ErrNilEnvelope is returned when a nil envelope is handed to a consumer.
	ErrNilEnvelope = errors.New("envelope is nil")
)

// Envelope wraps an opaque message body and deserializes it on demand into
// whatever concrete shape the caller requests, without committing to one
// type up front. A consumer first peeks the header to route the message,
// then re-parses the same body as the concrete command type.
type Envelope struct {
	body []byte
}

// NewEnvelope wraps a raw JSON body.
func NewEnvelope(body []byte) (*Envelope, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	return &Envelope{body: body}, nil
}

// NewEnvelopeFromMessage serializes any header-bearing message into an
// envelope.
func NewEnvelopeFromMessage(message any) (*Envelope, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return &Envelope{body: body}, nil
}

// Body returns the raw bytes of the envelope.
func (e *Envelope) Body() []byte {
	if e == nil {
		return nil
	}

	return e.body
}

// Parse deserializes the body into the given value.
func (e *Envelope) Parse(into any) error {
	if e == nil {
		return ErrNilEnvelope
	}

	if err := json.Unmarshal(e.body, into); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}

	return nil
}

// header-only view of any command or event.
type headerOnly struct {
	Header MessageHeader `json:"header"`
}

// Header peeks the message header without parsing the content.
func (e *Envelope) Header() (MessageHeader, error) {
	var peek headerOnly
	if err := e.Parse(&peek); err != nil {
		return MessageHeader{}, err
	}

	return peek.Header, nil
}

// WithHeader returns a new envelope whose header is replaced and whose
// content is carried over byte-for-byte.
func (e *Envelope) WithHeader(header MessageHeader) (*Envelope, error) {
	if e == nil {
		return nil, ErrNilEnvelope
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.body, &fields); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	fields["header"] = headerBytes

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	return &Envelope{body: body}, nil
}
