package models

import "github.com/shopspring/decimal"

// BillTransaction is one append-only ledger entry: a contribution (or arrear)
// that was charged, transferred and confirmed. Exactly one row is written per
// completed settlement, keyed by the transfer that finalized it, and the row
// is immutable once created. This table is the sole source of truth for
// "has this money actually moved".
type BillTransaction struct {
	// ID is the public opaque identifier (UUID format).
	ID string

	// BillID is the bill the money settled against.
	BillID string

	// ActionID is the obligation this settlement fulfils.
	ActionID string

	// ArrearID is set when the settlement cleared an arrear rather than a
	// regular contribution cycle. Empty otherwise.
	ArrearID string

	// PayerID is the participant whose card was charged.
	PayerID string

	// ReceiverID is the creditor the transfer settled to.
	ReceiverID string

	// Contribution is the amount the creditor actually received.
	Contribution decimal.Decimal

	// TotalPayment is what the payer was charged (contribution + fees).
	TotalPayment decimal.Decimal

	// PaystackTransactionID is the gateway charge that collected the money.
	PaystackTransactionID string

	// PaystackTransferID is the gateway transfer that delivered the money.
	// Unique: replayed transfer.success webhooks must not create a second row.
	PaystackTransferID string

	// CreatedAt is the Unix timestamp when the settlement was confirmed.
	CreatedAt int64
}
