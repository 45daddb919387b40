// Package fees computes the gateway and platform fees layered on top of a
// contribution. It is pure: no I/O, no clock, deterministic for a given
// amount. Both bill creation and settlement finalization call into this
// package, so the numbers can never drift between the two.
package fees

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Paystack NGN pricing schedule. The gross-up form answers "what must we
// charge so the contribution survives the gateway's cut", padded by one kobo
// to absorb the gateway rounding up.
var (
	transactionRate = decimal.RequireFromString("0.015")
	flatFee         = decimal.NewFromInt(100)
	transactionCap  = decimal.NewFromInt(2000)
	flatFeeWaiver   = decimal.NewFromInt(2500)
	grossUpPad      = decimal.RequireFromString("0.01")

	transferTierSmall  = decimal.NewFromInt(5000)
	transferTierMedium = decimal.NewFromInt(50000)
	transferFeeSmall   = decimal.NewFromInt(10)
	transferFeeMedium  = decimal.NewFromInt(25)
	transferFeeLarge   = decimal.NewFromInt(50)

	one         = decimal.NewFromInt(1)
	two         = decimal.NewFromInt(2)
	minorFactor = decimal.NewFromInt(100)
)

// Breakdown is the full fee decomposition for one contribution.
type Breakdown struct {
	// PaystackTransactionFee is the gateway's charge fee.
	PaystackTransactionFee decimal.Decimal

	// PaystackTransferFee is the gateway's payout fee.
	PaystackTransferFee decimal.Decimal

	// HalverFee is the platform's own fee. It deliberately equals the sum
	// remitted to the gateway.
	HalverFee decimal.Decimal

	// TotalFee is everything stacked on the contribution:
	// HalverFee + (transaction fee + transfer fee).
	TotalFee decimal.Decimal

	// TotalPayable is contribution + TotalFee: what the card is charged.
	TotalPayable decimal.Decimal
}

// Compute returns the fee breakdown for a contribution in major currency
// units. All intermediate arithmetic is exact decimal; results are quantized
// to 2 places with banker's rounding.
func Compute(contribution decimal.Decimal) (Breakdown, error) {
	if contribution.IsNegative() {
		return Breakdown{}, fmt.Errorf("fees: contribution %s is negative", contribution)
	}

	txFee := transactionFee(contribution)
	trFee := transferFee(contribution)
	gatewayShare := txFee.Add(trFee)
	halverFee := gatewayShare
	totalFee := gatewayShare.Mul(two)

	return Breakdown{
		PaystackTransactionFee: txFee,
		PaystackTransferFee:    trFee,
		HalverFee:              halverFee,
		TotalFee:               totalFee,
		TotalPayable:           contribution.Add(totalFee).RoundBank(2),
	}, nil
}

// transactionFee applies the tiered charge schedule: below the waiver
// threshold the percentage alone is grossed up; at or above it the flat fee
// joins the amount before the same gross-up. Either way the result is capped.
func transactionFee(amount decimal.Decimal) decimal.Decimal {
	base := amount
	if amount.GreaterThanOrEqual(flatFeeWaiver) {
		base = amount.Add(flatFee)
	}
	fee := base.Div(one.Sub(transactionRate)).Add(grossUpPad).Sub(amount)
	if fee.GreaterThan(transactionCap) {
		fee = transactionCap
	}
	return fee.RoundBank(2)
}

// transferFee is the gateway's flat payout tier for the amount.
func transferFee(amount decimal.Decimal) decimal.Decimal {
	switch {
	case amount.LessThanOrEqual(transferTierSmall):
		return transferFeeSmall
	case amount.LessThanOrEqual(transferTierMedium):
		return transferFeeMedium
	default:
		return transferFeeLarge
	}
}

// ToMinorUnits converts a major-unit amount to integer minor units (kobo),
// quantized to zero places with banker's rounding. The gateway API speaks
// minor units exclusively.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorFactor).RoundBank(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a major-unit decimal.
// Round-trip law: FromMinorUnits(ToMinorUnits(x)) == x for any x exactly
// representable in minor units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorFactor)
}
