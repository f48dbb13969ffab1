package orchestration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LerianStudio/lib-saga/saga/dispatch"
	"github.com/LerianStudio/lib-saga/saga/log"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

// ErrNilRegistry is returned when an ingress is built without an instance
// registry.
var ErrNilRegistry = errors.New("instance registry is required")

// Signaler is the slice of an orchestration substrate the ingress needs:
// an identity and a way to raise external signals on it. *Local satisfies
// it.
type Signaler interface {
	InstanceID() string
	Signal(name, payload string)
}

// Registry tracks the running orchestration instances by transaction id so
// inbound participant events can be routed to the right one. Register on
// start, Deregister when the run returns.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Signaler
}

// NewRegistry creates an empty instance registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Signaler)}
}

// Register adds an instance keyed by its id. A nil instance is a no-op;
// a duplicate id replaces the previous entry.
func (r *Registry) Register(instance Signaler) {
	if instance == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.instances[instance.InstanceID()] = instance
}

// Deregister removes the instance with the given id, if any.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.instances, id)
}

// Lookup returns the registered instance for a transaction id.
func (r *Registry) Lookup(id string) (Signaler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.instances[id]

	return instance, ok
}

// EventRecord is the per-event audit entry the ingress appends before
// signaling, one row per participant event received.
type EventRecord struct {
	TransactionID string    `json:"transactionId" bson:"transactionId"`
	MessageID     string    `json:"messageId" bson:"messageId"`
	MessageType   string    `json:"messageType" bson:"messageType"`
	Source        string    `json:"source" bson:"source"`
	CreationDate  time.Time `json:"creationDate" bson:"creationDate"`
}

// EventIngress consumes participant event envelopes and raises each one as
// an external signal on the orchestration instance keyed by the header's
// transaction id. Registered on a dispatcher for every event type, it is
// what lets a broker deployment complete sagas.
type EventIngress struct {
	registry *Registry
	audit    repository.Appender[EventRecord]
	logger   log.Logger
}

// IngressOption configures an EventIngress.
type IngressOption func(*EventIngress)

// WithIngressLogger sets a structured logger for the ingress.
func WithIngressLogger(logger log.Logger) IngressOption {
	return func(i *EventIngress) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithAuditLog sets an append-only store receiving one EventRecord per
// processed event.
func WithAuditLog(audit repository.Appender[EventRecord]) IngressOption {
	return func(i *EventIngress) {
		if audit != nil {
			i.audit = audit
		}
	}
}

// NewEventIngress creates the ingress over an instance registry.
func NewEventIngress(registry *Registry, opts ...IngressOption) (*EventIngress, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	i := &EventIngress{
		registry: registry,
		logger:   log.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}

	return i, nil
}

// Processors returns the dispatch registration for every participant event
// type, all routed through this ingress.
func (i *EventIngress) Processors() map[string]dispatch.Processor {
	processors := make(map[string]dispatch.Processor, len(messaging.EventTypes()))
	for _, eventType := range messaging.EventTypes() {
		processors[eventType] = i
	}

	return processors
}

// Process records the event and raises its message type as a signal on the
// instance registered for the header's transaction id. An event with no
// running instance is logged and dropped; it usually arrives after the saga
// reached a terminal state.
func (i *EventIngress) Process(ctx context.Context, envelope *messaging.Envelope) error {
	if envelope == nil {
		return messaging.ErrNilEnvelope
	}

	header, err := envelope.Header()
	if err != nil {
		return err
	}

	if i.audit != nil {
		record := EventRecord{
			TransactionID: header.TransactionID,
			MessageID:     header.MessageID,
			MessageType:   header.MessageType,
			Source:        string(header.Source),
			CreationDate:  header.CreationDate,
		}
		if err := i.audit.Add(ctx, record); err != nil {
			i.logger.Log(ctx, log.LevelWarn, "event audit append failed",
				log.String("transaction_id", header.TransactionID),
				log.String("message_type", header.MessageType),
				log.Err(err),
			)
		}
	}

	instance, ok := i.registry.Lookup(header.TransactionID)
	if !ok {
		i.logger.Log(ctx, log.LevelWarn, "event for unknown orchestration instance",
			log.String("transaction_id", header.TransactionID),
			log.String("message_type", header.MessageType),
		)

		return nil
	}

	instance.Signal(string(header.Source), header.MessageType)

	i.logger.Log(ctx, log.LevelDebug, "event signaled to orchestration instance",
		log.String("transaction_id", header.TransactionID),
		log.String("signal", string(header.Source)),
		log.String("payload", header.MessageType),
	)

	return nil
}
