package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/LerianStudio/lib-saga/saga"
	"github.com/LerianStudio/lib-saga/saga/messaging"
	"github.com/LerianStudio/lib-saga/saga/publisher"
	"github.com/LerianStudio/lib-saga/saga/repository"
)

// Step is one unit of work a substrate runs on behalf of the
// orchestrator, outside its replayed logic.
type Step func(ctx context.Context, input any) (any, error)

// StateChange is the input of a persist-state step.
type StateChange struct {
	TransactionID string     `json:"transactionId"`
	State         saga.State `json:"state"`
}

// PersistStepName returns the step name registered for persisting the
// given state.
func PersistStepName(state saga.State) string {
	return "Persist" + string(state)
}

// PersistedStates lists every state the orchestrator records.
func PersistedStates() []saga.State {
	return []saga.State{saga.StatePending, saga.StateSuccess, saga.StateCancelled, saga.StateFail}
}

// CommandProducers builds the orchestrator's command table for one
// transaction. Each producer calls the substrate step named after the
// command kind, retried under the given policy; a step error or a
// non-result payload reads as a failed publish, never as an exception.
func CommandProducers(octx Context, policy RetryPolicy, transaction saga.Transaction) map[messaging.CommandKind]CommandProducer {
	producers := make(map[messaging.CommandKind]CommandProducer, len(messaging.CommandKinds()))

	for _, kind := range messaging.CommandKinds() {
		producers[kind] = func() publisher.Result {
			out, err := octx.CallStepWithRetry(string(kind), policy, transaction)
			if err != nil {
				return publisher.Result{}
			}

			result, ok := out.(publisher.Result)
			if !ok {
				return publisher.Result{}
			}

			return result
		}
	}

	return producers
}

// StatePersisters builds the orchestrator's persister table for one
// transaction. Each persister calls the substrate step named after the
// state, retried under the given policy; success means the step resolved
// without error.
func StatePersisters(octx Context, policy RetryPolicy, transactionID string) map[saga.State]StatePersister {
	persisters := make(map[saga.State]StatePersister, len(PersistedStates()))

	for _, state := range PersistedStates() {
		change := StateChange{TransactionID: transactionID, State: state}

		persisters[state] = func() bool {
			_, err := octx.CallStepWithRetry(PersistStepName(change.State), policy, change)

			return err == nil
		}
	}

	return persisters
}

// PublishCommandStep builds the substrate step publishing one command
// kind. The step expects a saga.Transaction input, wraps it in a fresh
// command and hands it to the reliable publisher.
func PublishCommandStep(kind messaging.CommandKind, pub *publisher.ReliablePublisher, clock func() time.Time) Step {
	if clock == nil {
		clock = time.Now
	}

	return func(ctx context.Context, input any) (any, error) {
		transaction, ok := input.(saga.Transaction)
		if !ok {
			return nil, fmt.Errorf("publish step %q: unexpected input %T", kind, input)
		}

		details := messaging.TransactionDetails{
			AccountFromID: transaction.AccountFromID,
			AccountToID:   transaction.AccountToID,
			Amount:        transaction.Amount,
		}

		command := messaging.NewCommand(kind, transaction.ID, details, clock())

		return pub.Publish(ctx, command), nil
	}
}

// PersistStateStep builds the substrate step recording one state
// transition in the transaction store.
func PersistStateStep(store repository.TransactionStore) Step {
	return func(ctx context.Context, input any) (any, error) {
		change, ok := input.(StateChange)
		if !ok {
			return nil, fmt.Errorf("persist step: unexpected input %T", input)
		}

		if err := store.UpdateState(ctx, change.TransactionID, change.State); err != nil {
			return nil, fmt.Errorf("persist state %q: %w", change.State, err)
		}

		return true, nil
	}
}

type stepResult struct {
	out any
	err error
}

// CallStepWithDeadline races a retried step call against a durable timer
// so a wrapped call always resolves: either the step completes within the
// deadline or ErrStepTimeout is returned.
func CallStepWithDeadline(octx Context, name string, policy RetryPolicy, input any, timeout time.Duration) (any, error) {
	if octx == nil {
		return nil, ErrNilContext
	}

	if timeout < 0 {
		return nil, ErrNegativeTimeout
	}

	done := make(chan stepResult, 1)

	go func() {
		out, err := octx.CallStepWithRetry(name, policy, input)
		done <- stepResult{out: out, err: err}
	}()

	timer, cancel := octx.CreateTimer(octx.CurrentTime().Add(timeout))

	select {
	case result := <-done:
		cancel()

		return result.out, result.err
	case <-timer:
		return nil, fmt.Errorf("%w: step %q after %s", ErrStepTimeout, name, timeout)
	}
}
