package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/LerianStudio/lib-saga/saga/dispatch"
	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/runtime"
)

// ConsumeChannel is the inbound subset of an AMQP channel.
type ConsumeChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consumer drains one queue and hands each delivery to the dispatcher.
// Deliveries are independent: a failed one is logged and rejected without
// requeue, and its siblings keep flowing.
type Consumer struct {
	channel    ConsumeChannel
	queue      string
	dispatcher *dispatch.Dispatcher
	logger     log.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets a structured logger for the consumer.
func WithConsumerLogger(logger log.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer creates a consumer over an open channel.
func NewConsumer(channel ConsumeChannel, queue string, dispatcher *dispatch.Dispatcher, opts ...ConsumerOption) (*Consumer, error) {
	if channel == nil {
		return nil, ErrNilChannel
	}

	if queue == "" {
		return nil, ErrEmptyQueue
	}

	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}

	c := &Consumer{
		channel:    channel,
		queue:      queue,
		dispatcher: dispatcher,
		logger:     log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Start begins consuming on a background goroutine until the context is
// cancelled or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	runtime.SafeGo(c.logger, "rabbitmq-consumer", func() {
		c.drain(ctx, deliveries)
	})

	return nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, open := <-deliveries:
			if !open {
				c.logger.Log(ctx, log.LevelWarn, "delivery channel closed",
					log.String("queue", c.queue),
				)

				return
			}

			c.handle(ctx, delivery)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery amqp.Delivery) {
	envelope, err := messaging.NewEnvelope(delivery.Body)
	if err == nil {
		err = c.dispatcher.Dispatch(ctx, envelope)
	}

	if err != nil {
		c.logger.Log(ctx, log.LevelError, "delivery processing failed",
			log.String("queue", c.queue),
			log.String("message_id", delivery.MessageId),
			log.Err(err),
		)

		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Log(ctx, log.LevelError, "delivery nack failed", log.Err(nackErr))
		}

		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Log(ctx, log.LevelError, "delivery ack failed", log.Err(ackErr))
	}
}
