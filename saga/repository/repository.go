// Package repository provides the document persistence used by the saga:
// an append-only store for participant aggregates and ledger lines, and a
// transaction store keyed by the saga's correlation id.
//
// The in-memory implementations back unit tests and single-process runs;
// the Mongo implementations bind the same contracts to a document store.
package repository

import (
	"context"
	"errors"

	"github.com/LerianStudio/lib-saga/saga"
)

// ErrNotFound is returned when a transaction id is unknown to the store.
var ErrNotFound = errors.New("transaction not found")

// ErrNilCollection is returned when a Mongo-backed store is built without
// a collection handle.
var ErrNilCollection = errors.New("mongo collection is required")

// Appender is the append-only persistence contract used by participants.
// Stored items are an audit trail: they are never mutated or removed.
type Appender[T any] interface {
	Add(ctx context.Context, item T) error
}

// TransactionStore persists the saga transaction record. Save creates or
// replaces the whole record; UpdateState rewrites only the state, once per
// orchestrator transition.
type TransactionStore interface {
	Save(ctx context.Context, transaction saga.Transaction) error
	UpdateState(ctx context.Context, id string, state saga.State) error
	FindByID(ctx context.Context, id string) (saga.Transaction, error)
}
