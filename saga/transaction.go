package saga

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// State represents the persisted lifecycle state of a saga instance.
//
// Semantics:
//   - Pending: the saga started and is being driven by the orchestrator.
//   - Success: every step confirmed; terminal.
//   - Cancelled: a later step failed and compensation confirmed; terminal.
//   - Fail: a step failed and compensation did not confirm; terminal.
type State string

const (
	// StatePending marks a saga as started but not yet resolved.
	StatePending State = "Pending"
	// StateSuccess marks a saga as fully confirmed.
	StateSuccess State = "Success"
	// StateCancelled marks a saga as compensated.
	StateCancelled State = "Cancelled"
	// StateFail marks a saga as failed without confirmed compensation.
	StateFail State = "Fail"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateCancelled || s == StateFail
}

// Input validation errors for saga start requests.
var (
	// ErrEmptyTransactionID is returned when the transaction id is blank.
	ErrEmptyTransactionID = errors.New("transaction id is required")
	// ErrEmptyAccountFrom is returned when the source account id is blank.
	ErrEmptyAccountFrom = errors.New("accountFromId is required")
	// ErrEmptyAccountTo is returned when the destination account id is blank.
	ErrEmptyAccountTo = errors.New("accountToId is required")
	// ErrNonPositiveAmount is returned when the amount is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
)

// Transaction is the saga's correlation record. The identity fields are
// immutable after creation; only State changes, once per persisted
// transition.
type Transaction struct {
	ID            string          `json:"id" bson:"_id"`
	AccountFromID string          `json:"accountFromId" bson:"accountFromId"`
	AccountToID   string          `json:"accountToId" bson:"accountToId"`
	Amount        decimal.Decimal `json:"amount" bson:"amount"`
	State         State           `json:"state" bson:"state"`
}

// NewTransaction validates the identity fields and returns a Pending
// transaction record.
func NewTransaction(id, accountFromID, accountToID string, amount decimal.Decimal) (Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return Transaction{}, ErrEmptyTransactionID
	}

	if strings.TrimSpace(accountFromID) == "" {
		return Transaction{}, ErrEmptyAccountFrom
	}

	if strings.TrimSpace(accountToID) == "" {
		return Transaction{}, ErrEmptyAccountTo
	}

	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%w: got %s", ErrNonPositiveAmount, amount)
	}

	return Transaction{
		ID:            id,
		AccountFromID: accountFromID,
		AccountToID:   accountToID,
		Amount:        amount,
		State:         StatePending,
	}, nil
}

// WithState returns a copy of the transaction carrying the given state.
// The identity fields are never rewritten.
func (t Transaction) WithState(state State) Transaction {
	t.State = state

	return t
}
