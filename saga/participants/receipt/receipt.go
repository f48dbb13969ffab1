// Package receipt implements the receipt participant. It closes a
// successful transfer by issuing a deterministically signed receipt.
package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/LerianStudio/lib-saga/saga"
)

// State is the lifecycle state of a receipt aggregate.
type State string

const (
	// StateNone marks a receipt not yet issued.
	StateNone State = "None"
	// StateIssued marks a signed receipt.
	StateIssued State = "Issued"
)

// ExecutedTransfer is the receipt-phase aggregate: the transfer identity,
// the issue date and the signature over both.
type ExecutedTransfer struct {
	TransactionID    string    `json:"transactionId" bson:"transactionId"`
	TransferDate     time.Time `json:"transferDate" bson:"transferDate"`
	State            State     `json:"state" bson:"state"`
	ReceiptSignature string    `json:"receiptSignature" bson:"receiptSignature"`
}

// IssueReceipt creates an issued receipt for the transaction. The
// signature is the hex SHA-256 digest of a canonical string over the
// aggregate's own fields, so re-issuing with the same inputs yields the
// same signature.
func IssueReceipt(transactionID string, at time.Time) (ExecutedTransfer, error) {
	if strings.TrimSpace(transactionID) == "" {
		return ExecutedTransfer{}, saga.ErrEmptyTransactionID
	}

	executed := ExecutedTransfer{
		TransactionID: transactionID,
		TransferDate:  at.UTC(),
		State:         StateIssued,
	}
	executed.ReceiptSignature = sign(executed)

	return executed, nil
}

func sign(executed ExecutedTransfer) string {
	canonical := fmt.Sprintf("id=%s,date=%s,state=%s",
		executed.TransactionID,
		executed.TransferDate.UTC().Format(time.RFC3339Nano),
		executed.State,
	)

	digest := sha256.Sum256([]byte(canonical))

	return hex.EncodeToString(digest[:])
}
