package models

import "github.com/shopspring/decimal"

// ActionStatus is the settlement state of one participant's obligation.
// Transitions are driven exclusively by webhook events (internal/settlement),
// except opt-out and cancellation which are user-initiated.
type ActionStatus string

const (
	// StatusPending: created, participant has not agreed or paid yet.
	StatusPending ActionStatus = "pending"

	// StatusUnregistered: the participant has no account yet. Orthogonal to
	// the payment flow; becomes StatusPending once the phone number is claimed.
	StatusUnregistered ActionStatus = "unregistered"

	// StatusOverdue: the bill deadline passed without payment.
	StatusOverdue ActionStatus = "overdue"

	// StatusOptedOut: the participant declined the bill.
	StatusOptedOut ActionStatus = "opted_out"

	// StatusCancelled: the bill (or this action) was cancelled by the creator.
	StatusCancelled ActionStatus = "cancelled"

	// StatusPendingTransfer: the charge succeeded and the creditor transfer
	// has been initiated but not yet confirmed.
	StatusPendingTransfer ActionStatus = "pending_transfer"

	// StatusCompleted: terminal state for a one-time contribution; the
	// transfer landed and the ledger entry exists.
	StatusCompleted ActionStatus = "completed"

	// StatusOngoing: a recurring contribution with an active subscription.
	StatusOngoing ActionStatus = "ongoing"

	// StatusFailedTransfer: the creditor transfer failed after a successful
	// charge. Flagged for manual retry; never auto-retried.
	StatusFailedTransfer ActionStatus = "failed_transfer"

	// StatusReversedTransfer: the gateway reversed a previously successful
	// transfer. Flagged for manual retry; never auto-retried.
	StatusReversedTransfer ActionStatus = "reversed_transfer"

	// StatusLastPaymentFailed: a recurring charge failed; the residue lives on
	// as a BillArrear while the subscription keeps running.
	StatusLastPaymentFailed ActionStatus = "last_payment_failed"
)

// Terminal reports whether the action can no longer move money.
func (s ActionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusOptedOut, StatusCancelled:
		return true
	}
	return false
}

// BillAction is one participant's obligation within a bill: their contribution,
// the fees layered on top, and the settlement status. Exactly one of
// ParticipantID and UnregisteredParticipantID is set.
type BillAction struct {
	// ID is the public opaque identifier (UUID format). It is also the
	// correlation key embedded in transfer reason strings, so it must never
	// change once the action exists.
	ID string

	// BillID is the owning bill.
	BillID string

	// ParticipantID is the registered user who owes this contribution.
	// Empty when the participant is unregistered.
	ParticipantID string

	// UnregisteredParticipantID is the phone-only stub who owes this
	// contribution. Empty when the participant is registered.
	UnregisteredParticipantID string

	// Contribution is the participant's share of the bill, excluding fees.
	Contribution decimal.Decimal

	// PaystackTransactionFee is the gateway's charge fee for this contribution.
	PaystackTransactionFee decimal.Decimal

	// PaystackTransferFee is the gateway's payout fee for this contribution.
	PaystackTransferFee decimal.Decimal

	// HalverFee is the platform fee; it mirrors the sum remitted to the
	// gateway (transaction fee + transfer fee).
	HalverFee decimal.Decimal

	// TotalFee is everything charged on top of the contribution.
	TotalFee decimal.Decimal

	// TotalPaymentDue is contribution + total fee: what the participant's
	// card is actually charged.
	TotalPaymentDue decimal.Decimal

	// Status is the settlement state. See the ActionStatus constants.
	Status ActionStatus

	// PaystackPlanCode is the gateway plan code (PLN_...) backing a recurring
	// action. Empty for one-time bills or until the plan is created. Plans
	// are per-action, so the code also keys the subscription.create webhook
	// back to its action.
	PaystackPlanCode string

	// PaystackSubscriptionID references the active gateway subscription.
	// Empty until subscription.create has been processed. Duplicate
	// subscription checks read this field, never a join.
	PaystackSubscriptionID string

	// CreatedAt is the Unix timestamp when the action was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last status change.
	UpdatedAt int64
}
