// Package saga holds the shared domain types of the money-transfer saga:
// the transaction record that correlates every message of one saga instance
// and the terminal/initial states persisted by the orchestrator.
//
// Subpackages provide the coordination engine (orchestration), the
// reliability primitives (publisher, circuitbreaker, backoff), command
// routing (dispatch, messaging), the participant domain logic
// (participants/...), and thin adapters over external collaborators
// (server, rabbitmq, repository).
package saga
