package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurrenceInterval is how often a bill charges its participants.
type RecurrenceInterval string

const (
	IntervalNone       RecurrenceInterval = "none"
	IntervalDaily      RecurrenceInterval = "daily"
	IntervalWeekly     RecurrenceInterval = "weekly"
	IntervalMonthly    RecurrenceInterval = "monthly"
	IntervalQuarterly  RecurrenceInterval = "quarterly"
	IntervalBiannually RecurrenceInterval = "biannually"
	IntervalAnnually   RecurrenceInterval = "annually"
)

// Recurring reports whether the bill charges on a cycle rather than once.
func (i RecurrenceInterval) Recurring() bool {
	return i != IntervalNone && i != ""
}

// Bill represents a shared obligation owed to a single creditor.
// A bill exclusively owns its BillActions and BillArrears.
type Bill struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// Name is the human-readable label for the bill (e.g., "Rent", "Netflix").
	Name string

	// CreatorID is the user who created the bill. May differ from the creditor.
	CreatorID string

	// CreditorID is the user owed the money. Transfers settle to this user's
	// default transfer recipient.
	CreditorID string

	// Currency is the ISO currency code. Only NGN is in use today.
	Currency string

	// TotalAmountDue is the full amount the creditor expects, fees included.
	// At creation time the sum of all action payment dues must reconcile
	// against this value.
	TotalAmountDue decimal.Decimal

	// Interval is the recurrence cycle; IntervalNone means a one-time bill.
	Interval RecurrenceInterval

	// FirstChargeDate is when the first recurring charge should run.
	// Unused for one-time bills.
	FirstChargeDate time.Time

	// Deadline is when the bill should be fully settled.
	Deadline time.Time

	// IsDiscreet hides per-participant amounts from everyone except the
	// creditor and creator.
	IsDiscreet bool

	// CreatedAt is the Unix timestamp when the bill was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last mutation.
	UpdatedAt int64
}

// User is the minimal participant record the settlement flow needs: card
// authorization for charging, recipient code for transfers, device token for
// notifications. Account management itself lives outside this system.
type User struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// Name is the display name.
	Name string

	// Email is required by the gateway when charging a stored authorization.
	Email string

	// Phone is the user's phone number.
	Phone string

	// DefaultAuthorizationCode is the gateway token for the user's default
	// card. Empty if no card has been added.
	DefaultAuthorizationCode string

	// DefaultRecipientCode is the gateway transfer-recipient code for the
	// user's default payout account. Empty if none has been created.
	DefaultRecipientCode string

	// DeviceToken is the push-notification token for the user's device.
	// Empty if the user has no registered device.
	DeviceToken string

	// CreatedAt is the Unix timestamp when the user was created.
	CreatedAt int64
}

// UnregisteredParticipant is a phone-only stub for someone invited to a bill
// before they have an account. Their action sits in StatusUnregistered until
// the number is claimed.
type UnregisteredParticipant struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// Name is whatever the bill creator called them.
	Name string

	// Phone is the invitation channel and the claim key.
	Phone string

	// CreatedAt is the Unix timestamp when the stub was created.
	CreatedAt int64
}
