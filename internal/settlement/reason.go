package settlement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Transfer reason strings are a wire contract. The gateway echoes them back
// verbatim on transfer webhooks, and the embedded UUID is the only key tying
// the transfer hop back to the charge hop. The sentence wording below must
// stay byte-for-byte compatible with what is already in flight on the
// gateway account; change it and in-flight transfers become unroutable.
const (
	reasonOneTime    = "One-time contribution transfer for action with ID: "
	reasonRecurring  = "Recurring contribution transfer for action with ID: "
	reasonArrear     = "Arrear settlement transfer for arrear with ID: "
	reasonCardRefund = "Refund of card addition charge for user with ID: "
)

// TransferPurpose classifies what a transfer was for.
type TransferPurpose string

const (
	PurposeOneTimeContribution   TransferPurpose = "one_time_contribution"
	PurposeRecurringContribution TransferPurpose = "recurring_contribution"
	PurposeArrearSettlement      TransferPurpose = "arrear_settlement"
	PurposeCardRefund            TransferPurpose = "card_addition_refund"
)

// ErrUnroutableReason means a transfer webhook's reason string matched no
// known format or carried no identifier. Money has already moved on the
// gateway side, so this is fatal for the event and logged with the full
// payload for manual reconciliation.
var ErrUnroutableReason = errors.New("settlement: unroutable transfer reason")

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// ParsedReason is a reason string reduced to typed parts. Downstream code
// works with this, never with the raw text.
type ParsedReason struct {
	Purpose TransferPurpose
	ID      uuid.UUID
}

// OneTimeContributionReason builds the reason for a one-time settlement
// transfer. The action ID is embedded verbatim; it is the idempotency key
// across both webhook hops.
func OneTimeContributionReason(actionID string) string {
	return reasonOneTime + actionID + "."
}

// RecurringContributionReason builds the reason for a recurring-cycle
// settlement transfer.
func RecurringContributionReason(actionID string) string {
	return reasonRecurring + actionID + "."
}

// ArrearSettlementReason builds the reason for an arrear settlement transfer.
func ArrearSettlementReason(arrearID string) string {
	return reasonArrear + arrearID + "."
}

// CardRefundReason builds the reason for refunding a card-addition charge.
func CardRefundReason(userID string) string {
	return reasonCardRefund + userID + "."
}

// ParseReason classifies a reason string by its label prefix and extracts
// the first embedded UUID. Both halves must be present; a recognizable label
// without an identifier (or vice versa) is unroutable.
func ParseReason(reason string) (ParsedReason, error) {
	var purpose TransferPurpose
	switch {
	case strings.HasPrefix(reason, reasonOneTime):
		purpose = PurposeOneTimeContribution
	case strings.HasPrefix(reason, reasonRecurring):
		purpose = PurposeRecurringContribution
	case strings.HasPrefix(reason, reasonArrear):
		purpose = PurposeArrearSettlement
	case strings.HasPrefix(reason, reasonCardRefund):
		purpose = PurposeCardRefund
	default:
		return ParsedReason{}, fmt.Errorf("%w: unrecognized label in %q", ErrUnroutableReason, reason)
	}

	match := uuidPattern.FindString(reason)
	if match == "" {
		return ParsedReason{}, fmt.Errorf("%w: no identifier in %q", ErrUnroutableReason, reason)
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return ParsedReason{}, fmt.Errorf("%w: bad identifier %q", ErrUnroutableReason, match)
	}

	return ParsedReason{Purpose: purpose, ID: id}, nil
}
