package models

import "github.com/shopspring/decimal"

// ArrearStatus is the sub-state-machine for settling a missed recurring
// charge. It mirrors the one-time settlement path, plus a creditor-only
// administrative close.
type ArrearStatus string

const (
	// ArrearOverdue: the recurring charge failed; money is owed.
	ArrearOverdue ArrearStatus = "overdue"

	// ArrearPendingTransfer: the make-up charge succeeded; the creditor
	// transfer is in flight.
	ArrearPendingTransfer ArrearStatus = "pending_transfer"

	// ArrearCompleted: the transfer landed and the ledger entry exists.
	ArrearCompleted ArrearStatus = "completed"

	// ArrearForgiven: the creditor waived the debt. No money moves.
	ArrearForgiven ArrearStatus = "forgiven"

	// ArrearFailedTransfer: the creditor transfer failed after the make-up
	// charge succeeded. Flagged for manual retry.
	ArrearFailedTransfer ArrearStatus = "failed_transfer"

	// ArrearReversedTransfer: the gateway reversed the settlement transfer.
	ArrearReversedTransfer ArrearStatus = "reversed_transfer"
)

// BillArrear is the residue of one failed recurring charge. It snapshots the
// parent action's contribution and fees at failure time, because the action's
// running fee data may change on later cycles. One action can accumulate many
// arrears. Arrears are never deleted; they are the audit trail.
type BillArrear struct {
	// ID is the public opaque identifier (UUID format). Like an action ID, it
	// is the correlation key inside arrear-settlement transfer reasons.
	ID string

	// BillID is the owning bill.
	BillID string

	// ActionID is the parent action whose charge failed.
	ActionID string

	// ParticipantID is the registered user who owes the arrear.
	ParticipantID string

	// Contribution is the participant's share at the time of failure.
	Contribution decimal.Decimal

	// PaystackTransactionFee, PaystackTransferFee, HalverFee, TotalFee and
	// TotalPaymentDue snapshot the parent action's fee breakdown at failure
	// time.
	PaystackTransactionFee decimal.Decimal
	PaystackTransferFee    decimal.Decimal
	HalverFee              decimal.Decimal
	TotalFee               decimal.Decimal
	TotalPaymentDue        decimal.Decimal

	// InvoiceReference is the gateway invoice code of the failed charge.
	// Unique per arrear, so a re-delivered invoice.payment_failed webhook
	// cannot snapshot the same missed cycle twice. Empty for arrears raised
	// outside the webhook path.
	InvoiceReference string

	// Status is the arrear settlement state.
	Status ArrearStatus

	// CreatedAt is the Unix timestamp when the failed charge was recorded.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last status change.
	UpdatedAt int64
}
