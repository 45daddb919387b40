package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferOutcome is the terminal result the gateway reported for a transfer.
type TransferOutcome string

const (
	TransferSuccessful TransferOutcome = "successful"
	TransferFailed     TransferOutcome = "failed"
	TransferReversed   TransferOutcome = "reversed"
)

// TransferType discriminates what a transfer was for, derived from its
// reason string.
type TransferType string

const (
	TransferCreditorSettlement TransferType = "creditor_settlement"
	TransferArrearSettlement   TransferType = "arrear_settlement"
	TransferCardRefund         TransferType = "card_addition_refund"
)

// PaystackTransaction mirrors a successful gateway charge, created from the
// charge.success webhook payload.
type PaystackTransaction struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// ActionID is the obligation the charge was collected for.
	ActionID string

	// ArrearID is set when the charge was an arrear make-up payment.
	ArrearID string

	// Reference is the gateway's unique transaction reference.
	Reference string

	// Amount is the charged amount in major currency units.
	Amount decimal.Decimal

	// Fees is what the gateway deducted, in major currency units.
	Fees decimal.Decimal

	// AuthorizationCode is the card token the charge ran against.
	AuthorizationCode string

	// Channel is the gateway payment channel (card, bank, ...).
	Channel string

	// PaidAt is when the gateway confirmed the charge.
	PaidAt time.Time

	// CreatedAt is the Unix timestamp when the mirror row was written.
	CreatedAt int64
}

// PaystackTransfer mirrors a gateway transfer attempt, created from the
// transfer.success/failed/reversed webhook payloads. Rows are written for
// every outcome so failures stay auditable.
type PaystackTransfer struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// Reference is the gateway's unique transfer reference.
	Reference string

	// TransferCode is the gateway's transfer code (TRF_...).
	TransferCode string

	// RecipientCode is the transfer recipient the money went to.
	RecipientCode string

	// Amount is the transferred amount in major currency units.
	Amount decimal.Decimal

	// Reason is the free-text reason string, preserved byte-for-byte. It is
	// the wire contract carrying the correlation identifier.
	Reason string

	// Outcome is what the gateway reported.
	Outcome TransferOutcome

	// Type is what the transfer was for, parsed from Reason.
	Type TransferType

	// ActionID and ArrearID link back to the settled entity when Type is a
	// settlement. Both empty for card refunds.
	ActionID string
	ArrearID string

	// CreatedAt is the Unix timestamp when the mirror row was written.
	CreatedAt int64
}

// PaystackPlan mirrors a gateway payment plan backing one recurring action.
type PaystackPlan struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// ActionID is the recurring action the plan charges.
	ActionID string

	// PlanCode is the gateway's plan code (PLN_...).
	PlanCode string

	// Name is the plan's display name on the gateway.
	Name string

	// Amount is the per-cycle charge in major currency units.
	Amount decimal.Decimal

	// Interval is the gateway billing interval.
	Interval RecurrenceInterval

	// CreatedAt is the Unix timestamp when the mirror row was written.
	CreatedAt int64
}

// PaystackSubscription mirrors an active gateway subscription, created from
// the subscription.create webhook keyed by a card-signature lookup.
type PaystackSubscription struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// ActionID is the recurring action this subscription pays for.
	ActionID string

	// SubscriptionCode is the gateway's subscription code (SUB_...).
	SubscriptionCode string

	// EmailToken authorizes disable calls together with SubscriptionCode.
	EmailToken string

	// PlanCode is the plan the subscription runs on.
	PlanCode string

	// CardSignature identifies the card the subscription charges; it is the
	// lookup key when the create webhook arrives.
	CardSignature string

	// NextPaymentDate is the gateway's next scheduled charge. Sibling
	// subscriptions on the same bill align their start dates to this.
	NextPaymentDate time.Time

	// Active is false once the subscription has been disabled.
	Active bool

	// CreatedAt is the Unix timestamp when the mirror row was written.
	CreatedAt int64
}
