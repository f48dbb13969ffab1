// Package rabbitmq binds the saga's messaging contracts to an AMQP
// broker: an outbound transport for the reliable publisher and a queue
// consumer feeding the command dispatcher.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
)

var (
	// ErrNilChannel is returned when a transport or consumer is built
	// without an AMQP channel.
	ErrNilChannel = errors.New("amqp channel is required")
	// ErrEmptyQueue is returned when a consumer is built without a queue
	// name.
	ErrEmptyQueue = errors.New("queue name is required")
	// ErrNilDispatcher is returned when a consumer is built without a
	// dispatcher.
	ErrNilDispatcher = errors.New("dispatcher is required")
)

// PublishChannel is the outbound subset of an AMQP channel.
type PublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Transport publishes envelopes to one exchange, routing by the
// envelope's messageType. It serves both the reliable publisher's
// transport contract and the participants' event producer contract.
type Transport struct {
	channel  PublishChannel
	exchange string
	logger   log.Logger
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithTransportLogger sets a structured logger for the transport.
func WithTransportLogger(logger log.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport creates an AMQP transport over an open channel.
func NewTransport(channel PublishChannel, exchange string, opts ...TransportOption) (*Transport, error) {
	if channel == nil {
		return nil, ErrNilChannel
	}

	t := &Transport{
		channel:  channel,
		exchange: exchange,
		logger:   log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t, nil
}

// Publish sends one envelope. The AMQP properties mirror the envelope
// header so broker tooling can trace a message without opening the body.
func (t *Transport) Publish(ctx context.Context, envelope *messaging.Envelope) error {
	if envelope == nil {
		return messaging.ErrNilEnvelope
	}

	header, err := envelope.Header()
	if err != nil {
		return err
	}

	err = t.channel.PublishWithContext(ctx, t.exchange, header.MessageType, false, false, amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     header.MessageID,
		CorrelationId: header.TransactionID,
		Type:          header.MessageType,
		Timestamp:     header.CreationDate,
		Body:          envelope.Body(),
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}

	t.logger.Log(ctx, log.LevelDebug, "message published",
		log.String("exchange", t.exchange),
		log.String("message_type", header.MessageType),
		log.String("transaction_id", header.TransactionID),
	)

	return nil
}

// Produce implements the participant event producer over the same
// transport.
func (t *Transport) Produce(ctx context.Context, event messaging.Event) error {
	envelope, err := messaging.NewEnvelopeFromMessage(event)
	if err != nil {
		return err
	}

	return t.Publish(ctx, envelope)
}
