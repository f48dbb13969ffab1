// Package transfer implements the funds-movement participant. A transfer
// appends double-entry lines to a checking account ledger; cancellation
// appends the sign-inverted pair. Lines are an audit trail and are never
// mutated or removed.
package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/LerianStudio/lib-saga/saga"
)

// Line is one checking account ledger entry. The amount is signed: a
// debit is negative, a credit positive.
type Line struct {
	TransferID    uuid.UUID       `json:"transferId" bson:"transferId"`
	TransactionID string          `json:"transactionId" bson:"transactionId"`
	TransferDate  time.Time       `json:"transferDate" bson:"transferDate"`
	AccountID     string          `json:"accountId" bson:"accountId"`
	Amount        decimal.Decimal `json:"amount" bson:"amount"`
	Description   string          `json:"description" bson:"description"`
}

// TransferLines builds the double-entry pair for a transfer: a debit on
// the source account and a matching credit on the destination account.
func TransferLines(transactionID, accountFromID, accountToID string, amount decimal.Decimal, at time.Time) ([]Line, error) {
	if err := validateInput(transactionID, accountFromID, accountToID, amount); err != nil {
		return nil, err
	}

	return []Line{
		newLine(transactionID, accountFromID, amount.Neg(), fmt.Sprintf("Transfer to account %s", accountToID), at),
		newLine(transactionID, accountToID, amount, fmt.Sprintf("Transfer from account %s", accountFromID), at),
	}, nil
}

// CancelLines builds the compensating pair for a prior transfer: a credit
// back on the source account and a matching debit on the destination.
func CancelLines(transactionID, accountFromID, accountToID string, amount decimal.Decimal, at time.Time) ([]Line, error) {
	if err := validateInput(transactionID, accountFromID, accountToID, amount); err != nil {
		return nil, err
	}

	return []Line{
		newLine(transactionID, accountFromID, amount, fmt.Sprintf("Transfer cancellation from account %s", accountToID), at),
		newLine(transactionID, accountToID, amount.Neg(), fmt.Sprintf("Transfer cancellation to account %s", accountFromID), at),
	}, nil
}

func newLine(transactionID, accountID string, amount decimal.Decimal, description string, at time.Time) Line {
	return Line{
		TransferID:    uuid.New(),
		TransactionID: transactionID,
		TransferDate:  at.UTC(),
		AccountID:     accountID,
		Amount:        amount,
		Description:   description,
	}
}

func validateInput(transactionID, accountFromID, accountToID string, amount decimal.Decimal) error {
	if strings.TrimSpace(transactionID) == "" {
		return saga.ErrEmptyTransactionID
	}

	if strings.TrimSpace(accountFromID) == "" {
		return saga.ErrEmptyAccountFrom
	}

	if strings.TrimSpace(accountToID) == "" {
		return saga.ErrEmptyAccountTo
	}

	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", saga.ErrNonPositiveAmount, amount)
	}

	return nil
}
