package messaging

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommandKind identifies one of the closed set of saga commands. The kind
// doubles as the wire messageType of the command.
type CommandKind string

const (
	// CommandValidateTransfer asks the validator to check the transfer input.
	CommandValidateTransfer CommandKind = "ValidateTransferCommand"
	// CommandTransfer asks the transfer participant to move the funds.
	CommandTransfer CommandKind = "TransferCommand"
	// CommandCancelTransfer asks a participant to undo a prior step.
	CommandCancelTransfer CommandKind = "CancelTransferCommand"
	// CommandIssueReceipt asks the receipt participant to sign the transfer.
	CommandIssueReceipt CommandKind = "IssueReceiptCommand"
)

// CommandKinds lists every command the orchestrator can produce.
func CommandKinds() []CommandKind {
	return []CommandKind{
		CommandValidateTransfer,
		CommandTransfer,
		CommandCancelTransfer,
		CommandIssueReceipt,
	}
}

// TransactionDetails is the transfer payload carried by every command.
type TransactionDetails struct {
	AccountFromID string          `json:"accountFromId"`
	AccountToID   string          `json:"accountToId"`
	Amount        decimal.Decimal `json:"amount"`
}

// CommandContent wraps the transaction details of a command.
type CommandContent struct {
	Transaction TransactionDetails `json:"transaction"`
}

// Command is a header plus transfer details, produced only by the
// orchestrator and consumed by exactly one participant type.
type Command struct {
	Header  MessageHeader  `json:"header"`
	Content CommandContent `json:"content"`
}

// NewCommand builds a command of the given kind with an Orchestrator-sourced
// header. The creation time comes from the caller so the orchestrator can
// use its replay-safe clock.
func NewCommand(kind CommandKind, transactionID string, details TransactionDetails, createdAt time.Time) Command {
	return Command{
		Header:  NewHeader(transactionID, string(kind), SourceOrchestrator, createdAt),
		Content: CommandContent{Transaction: details},
	}
}
