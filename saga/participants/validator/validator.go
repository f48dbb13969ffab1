// Package validator implements the validation participant. It checks the
// transfer input before any funds move and reports the outcome as exactly
// one typed event per command.
package validator

import (
	"github.com/shopspring/decimal"

	"github.com/LerianStudio/lib-saga/saga/messaging"
)

// State is the lifecycle state of a validation aggregate. It is set
// exactly once per operation.
type State string

const (
	// StateNone marks a freshly created aggregate.
	StateNone State = "None"
	// StateValid marks input that passed every check.
	StateValid State = "Valid"
	// StateInvalid marks rejected input.
	StateInvalid State = "Invalid"
	// StateCancelled marks a validation undone by compensation.
	StateCancelled State = "Cancelled"
)

// Rejection reasons carried by the failure events.
const (
	reasonInvalidAccount = "account id must not be empty"
	reasonInvalidAmount  = "amount must be greater than zero"
)

// InitialTransfer is the validation-phase aggregate: the transfer input as
// received, plus the verdict.
type InitialTransfer struct {
	TransactionID string          `json:"transactionId" bson:"transactionId"`
	AccountFromID string          `json:"accountFromId" bson:"accountFromId"`
	AccountToID   string          `json:"accountToId" bson:"accountToId"`
	Amount        decimal.Decimal `json:"amount" bson:"amount"`
	State         State           `json:"state" bson:"state"`
}

// NewInitialTransfer builds an unvalidated aggregate from the command
// payload.
func NewInitialTransfer(transactionID string, details messaging.TransactionDetails) InitialTransfer {
	return InitialTransfer{
		TransactionID: transactionID,
		AccountFromID: details.AccountFromID,
		AccountToID:   details.AccountToID,
		Amount:        details.Amount,
		State:         StateNone,
	}
}

// Validate checks the transfer input, settles the aggregate state and
// returns the event type reporting the verdict plus the rejection reason
// when invalid. Validation itself never fails: a rejection is a verdict,
// not an error.
func (t *InitialTransfer) Validate() (eventType, reason string) {
	switch {
	case t.AccountFromID == "":
		t.State = StateInvalid

		return messaging.EventInvalidAccount, reasonInvalidAccount
	case t.AccountToID == "":
		t.State = StateInvalid

		return messaging.EventInvalidAccount, reasonInvalidAccount
	case !t.Amount.IsPositive():
		t.State = StateInvalid

		return messaging.EventInvalidAmount, reasonInvalidAmount
	default:
		t.State = StateValid

		return messaging.EventTransferValidated, ""
	}
}

// Cancel marks the validation as compensated. Validation has no side
// effects to undo, so cancellation is unconditional.
func (t *InitialTransfer) Cancel() (eventType string) {
	t.State = StateCancelled

	return messaging.EventTransferCanceled
}
