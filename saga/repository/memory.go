package repository

import (
	"context"
	"sync"

	"github.com/LerianStudio/lib-saga/saga"
)

// InMemory is a thread-safe append-only store.
type InMemory[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewInMemory creates an empty in-memory store.
func NewInMemory[T any]() *InMemory[T] {
	return &InMemory[T]{}
}

// Add appends one item.
func (s *InMemory[T]) Add(_ context.Context, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)

	return nil
}

// Items returns a copy of everything stored so far.
func (s *InMemory[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, len(s.items))
	copy(out, s.items)

	return out
}

// InMemoryTransactionStore keeps saga transaction records keyed by id.
type InMemoryTransactionStore struct {
	mu           sync.RWMutex
	transactions map[string]saga.Transaction
}

// NewInMemoryTransactionStore creates an empty transaction store.
func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{transactions: make(map[string]saga.Transaction)}
}

// Save upserts the full transaction record.
func (s *InMemoryTransactionStore) Save(_ context.Context, transaction saga.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[transaction.ID] = transaction

	return nil
}

// UpdateState rewrites only the state of an existing record.
func (s *InMemoryTransactionStore) UpdateState(_ context.Context, id string, state saga.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transaction, ok := s.transactions[id]
	if !ok {
		return ErrNotFound
	}

	s.transactions[id] = transaction.WithState(state)

	return nil
}

// FindByID returns the record for the given transaction id.
func (s *InMemoryTransactionStore) FindByID(_ context.Context, id string) (saga.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transaction, ok := s.transactions[id]
	if !ok {
		return saga.Transaction{}, ErrNotFound
	}

	return transaction, nil
}
