package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/halverapp/halver-backend/internal/fees"
	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/storage"
)

// chargeSuccessFrom are the statuses a charge.success may arrive in: first
// payment (pending/overdue), a later recurring cycle (ongoing,
// last_payment_failed) or a manual retry after a bad transfer.
var chargeSuccessFrom = []models.ActionStatus{
	models.StatusPending,
	models.StatusOverdue,
	models.StatusOngoing,
	models.StatusLastPaymentFailed,
	models.StatusFailedTransfer,
	models.StatusReversedTransfer,
}

// HandleChargeSuccess records the charge mirror, moves the action (or arrear)
// to pending_transfer and initiates the creditor transfer. The transfer
// reason embeds the entity's identifier verbatim; that string is the only
// thread connecting this hop to the transfer webhooks that follow.
func (e *Engine) HandleChargeSuccess(ctx context.Context, ev ChargeEvent) error {
	if ev.ArrearID != "" {
		return e.arrearChargeSuccess(ctx, ev)
	}
	if ev.ActionID == "" {
		return fmt.Errorf("charge %s carries no action or arrear identifier", ev.Reference)
	}

	action, err := e.store.GetAction(ctx, ev.ActionID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, action.BillID)
	if err != nil {
		return err
	}
	creditor, err := e.store.GetUser(ctx, bill.CreditorID)
	if err != nil {
		return err
	}
	if creditor.DefaultRecipientCode == "" {
		return fmt.Errorf("creditor %s: %w", creditor.ID, ErrNoRecipient)
	}

	err = e.store.RecordActionCharge(ctx, chargeMirror(ev), models.StatusPendingTransfer, chargeSuccessFrom...)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed charge webhook ignored", "reference", ev.Reference, "action_id", ev.ActionID)
		return nil
	}
	if err != nil {
		return err
	}

	reason := OneTimeContributionReason(action.ID)
	if bill.Interval.Recurring() {
		reason = RecurringContributionReason(action.ID)
	}
	_, err = e.gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		Amount:    fees.ToMinorUnits(action.Contribution),
		Recipient: creditor.DefaultRecipientCode,
		Reason:    reason,
	})
	if err != nil {
		// The charge is already recorded; the transfer can be re-initiated
		// manually. Never lose the fact that money was collected.
		return fmt.Errorf("transfer initiation for action %s: %w", action.ID, err)
	}

	slog.Info("Contribution charged, transfer initiated",
		"action_id", action.ID, "bill_id", bill.ID, "reference", ev.Reference)
	return nil
}

func (e *Engine) arrearChargeSuccess(ctx context.Context, ev ChargeEvent) error {
	arrear, err := e.store.GetArrear(ctx, ev.ArrearID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, arrear.BillID)
	if err != nil {
		return err
	}
	creditor, err := e.store.GetUser(ctx, bill.CreditorID)
	if err != nil {
		return err
	}
	if creditor.DefaultRecipientCode == "" {
		return fmt.Errorf("creditor %s: %w", creditor.ID, ErrNoRecipient)
	}

	err = e.store.RecordArrearCharge(ctx, chargeMirror(ev), models.ArrearPendingTransfer,
		models.ArrearOverdue, models.ArrearFailedTransfer, models.ArrearReversedTransfer)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed arrear charge webhook ignored", "reference", ev.Reference, "arrear_id", ev.ArrearID)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = e.gateway.InitiateTransfer(ctx, paystack.TransferRequest{
		Amount:    fees.ToMinorUnits(arrear.Contribution),
		Recipient: creditor.DefaultRecipientCode,
		Reason:    ArrearSettlementReason(arrear.ID),
	})
	if err != nil {
		return fmt.Errorf("transfer initiation for arrear %s: %w", arrear.ID, err)
	}

	slog.Info("Arrear charged, transfer initiated", "arrear_id", arrear.ID, "bill_id", bill.ID)
	return nil
}

func chargeMirror(ev ChargeEvent) *models.PaystackTransaction {
	return &models.PaystackTransaction{
		ActionID:          ev.ActionID,
		ArrearID:          ev.ArrearID,
		Reference:         ev.Reference,
		Amount:            fees.FromMinorUnits(ev.AmountMinor),
		Fees:              fees.FromMinorUnits(ev.FeesMinor),
		AuthorizationCode: ev.AuthorizationCode,
		Channel:           ev.Channel,
		PaidAt:            ev.PaidAt,
	}
}

// HandleTransferSuccess finalizes a settlement: transfer mirror, ledger
// entry and settled status land in one transaction. Replays are absorbed by
// the transfer reference's uniqueness, so the ledger can never double-count.
func (e *Engine) HandleTransferSuccess(ctx context.Context, ev TransferEvent) error {
	switch ev.Parsed.Purpose {
	case PurposeCardRefund:
		return e.recordCardRefund(ctx, ev, models.TransferSuccessful)
	case PurposeArrearSettlement:
		return e.arrearTransferSuccess(ctx, ev)
	case PurposeOneTimeContribution, PurposeRecurringContribution:
		return e.actionTransferSuccess(ctx, ev)
	default:
		return fmt.Errorf("transfer %s: %w", ev.Reference, ErrUnroutableReason)
	}
}

func (e *Engine) actionTransferSuccess(ctx context.Context, ev TransferEvent) error {
	actionID := ev.Parsed.ID.String()
	action, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, action.BillID)
	if err != nil {
		return err
	}
	charge, err := e.store.LatestPaystackTransactionForAction(ctx, actionID)
	if err != nil {
		return fmt.Errorf("finalizing transfer %s: %w", ev.Reference, err)
	}

	settled := models.StatusCompleted
	if ev.Parsed.Purpose == PurposeRecurringContribution {
		settled = models.StatusOngoing
	}

	entry := &models.BillTransaction{
		BillID:                bill.ID,
		ActionID:              action.ID,
		PayerID:               action.ParticipantID,
		ReceiverID:            bill.CreditorID,
		Contribution:          action.Contribution,
		TotalPayment:          action.TotalPaymentDue,
		PaystackTransactionID: charge.ID,
	}
	err = e.store.FinalizeActionSettlement(ctx, transferMirror(ev, models.TransferSuccessful, models.TransferCreditorSettlement, actionID, ""), entry, settled)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed transfer webhook ignored", "reference", ev.Reference, "action_id", actionID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Contribution settled",
		"action_id", actionID, "bill_id", bill.ID, "status", settled, "reference", ev.Reference)
	e.notifyAll(ctx, e.settledNotifications(ctx, bill, action.ParticipantID, action.Contribution.String()))
	return nil
}

func (e *Engine) arrearTransferSuccess(ctx context.Context, ev TransferEvent) error {
	arrearID := ev.Parsed.ID.String()
	arrear, err := e.store.GetArrear(ctx, arrearID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, arrear.BillID)
	if err != nil {
		return err
	}
	charge, err := e.store.LatestPaystackTransactionForAction(ctx, arrear.ActionID)
	if err != nil {
		return fmt.Errorf("finalizing arrear transfer %s: %w", ev.Reference, err)
	}

	entry := &models.BillTransaction{
		BillID:                bill.ID,
		ActionID:              arrear.ActionID,
		ArrearID:              arrear.ID,
		PayerID:               arrear.ParticipantID,
		ReceiverID:            bill.CreditorID,
		Contribution:          arrear.Contribution,
		TotalPayment:          arrear.TotalPaymentDue,
		PaystackTransactionID: charge.ID,
	}
	err = e.store.FinalizeArrearSettlement(ctx, transferMirror(ev, models.TransferSuccessful, models.TransferArrearSettlement, arrear.ActionID, arrear.ID), entry, models.ArrearCompleted)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed arrear transfer webhook ignored", "reference", ev.Reference, "arrear_id", arrearID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Arrear settled", "arrear_id", arrearID, "bill_id", bill.ID)
	e.notifyAll(ctx, e.settledNotifications(ctx, bill, arrear.ParticipantID, arrear.Contribution.String()))
	return nil
}

// HandleTransferFailure records a failed or reversed transfer. The mirror
// row is kept for audit, both parties are told, and nothing is retried
// automatically: transfers move real money and re-issuing one is a human
// decision.
func (e *Engine) HandleTransferFailure(ctx context.Context, ev TransferEvent, outcome models.TransferOutcome) error {
	switch ev.Parsed.Purpose {
	case PurposeCardRefund:
		return e.recordCardRefund(ctx, ev, outcome)
	case PurposeArrearSettlement:
		return e.arrearTransferFailure(ctx, ev, outcome)
	case PurposeOneTimeContribution, PurposeRecurringContribution:
		return e.actionTransferFailure(ctx, ev, outcome)
	default:
		return fmt.Errorf("transfer %s: %w", ev.Reference, ErrUnroutableReason)
	}
}

func failureStatus(outcome models.TransferOutcome) (models.ActionStatus, models.ArrearStatus) {
	if outcome == models.TransferReversed {
		return models.StatusReversedTransfer, models.ArrearReversedTransfer
	}
	return models.StatusFailedTransfer, models.ArrearFailedTransfer
}

func (e *Engine) actionTransferFailure(ctx context.Context, ev TransferEvent, outcome models.TransferOutcome) error {
	actionID := ev.Parsed.ID.String()
	action, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, action.BillID)
	if err != nil {
		return err
	}

	actionStatus, _ := failureStatus(outcome)
	err = e.store.RecordActionTransferOutcome(ctx, transferMirror(ev, outcome, models.TransferCreditorSettlement, actionID, ""), actionStatus)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed transfer failure webhook ignored", "reference", ev.Reference)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Warn("Settlement transfer did not complete",
		"action_id", actionID, "bill_id", bill.ID, "outcome", outcome, "reference", ev.Reference)
	e.notifyAll(ctx, e.transferProblemNotifications(ctx, bill, action.ParticipantID))
	return nil
}

func (e *Engine) arrearTransferFailure(ctx context.Context, ev TransferEvent, outcome models.TransferOutcome) error {
	arrearID := ev.Parsed.ID.String()
	arrear, err := e.store.GetArrear(ctx, arrearID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, arrear.BillID)
	if err != nil {
		return err
	}

	_, arrearStatus := failureStatus(outcome)
	err = e.store.RecordArrearTransferOutcome(ctx, transferMirror(ev, outcome, models.TransferArrearSettlement, arrear.ActionID, arrear.ID), arrearStatus)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed arrear transfer failure webhook ignored", "reference", ev.Reference)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Warn("Arrear settlement transfer did not complete",
		"arrear_id", arrearID, "bill_id", bill.ID, "outcome", outcome)
	e.notifyAll(ctx, e.transferProblemNotifications(ctx, bill, arrear.ParticipantID))
	return nil
}

// recordCardRefund mirrors a card-addition refund transfer. No bill entity
// is involved; the row exists so the money trail stays complete.
func (e *Engine) recordCardRefund(ctx context.Context, ev TransferEvent, outcome models.TransferOutcome) error {
	err := e.store.CreatePaystackTransfer(ctx, transferMirror(ev, outcome, models.TransferCardRefund, "", ""))
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed card refund webhook ignored", "reference", ev.Reference)
		return nil
	}
	return err
}

func transferMirror(ev TransferEvent, outcome models.TransferOutcome, transferType models.TransferType, actionID, arrearID string) *models.PaystackTransfer {
	return &models.PaystackTransfer{
		Reference:     ev.Reference,
		TransferCode:  ev.TransferCode,
		RecipientCode: ev.RecipientCode,
		Amount:        fees.FromMinorUnits(ev.AmountMinor),
		Reason:        ev.Reason,
		Outcome:       outcome,
		Type:          transferType,
		ActionID:      actionID,
		ArrearID:      arrearID,
	}
}

// HandleSubscriptionCreated persists the subscription mirror and marks the
// action ongoing. The plan code keys the webhook back to its action; plans
// are created one-per-action so the mapping is unambiguous.
func (e *Engine) HandleSubscriptionCreated(ctx context.Context, ev SubscriptionEvent) error {
	action, err := e.store.GetActionByPlanCode(ctx, ev.PlanCode)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", ev.SubscriptionCode, err)
	}

	err = e.store.CreatePaystackSubscription(ctx, &models.PaystackSubscription{
		ActionID:         action.ID,
		SubscriptionCode: ev.SubscriptionCode,
		EmailToken:       ev.EmailToken,
		PlanCode:         ev.PlanCode,
		CardSignature:    ev.CardSignature,
		NextPaymentDate:  ev.NextPaymentDate,
		Active:           true,
	})
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Info("Replayed subscription webhook ignored", "subscription_code", ev.SubscriptionCode)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Subscription active", "action_id", action.ID, "subscription_code", ev.SubscriptionCode)
	return nil
}

// HandleChargeFailure reacts to a failed recurring charge. The parent
// action's running fee data is left untouched; instead the current
// contribution and fees are snapshotted into a fresh overdue arrear and the
// action is flagged, all in one transaction.
func (e *Engine) HandleChargeFailure(ctx context.Context, ev ChargeFailureEvent) error {
	sub, err := e.store.GetSubscriptionByCode(ctx, ev.SubscriptionCode)
	if err != nil {
		return err
	}
	action, err := e.store.GetAction(ctx, sub.ActionID)
	if err != nil {
		return err
	}
	bill, err := e.store.GetBill(ctx, action.BillID)
	if err != nil {
		return err
	}

	arrear := &models.BillArrear{
		BillID:                 bill.ID,
		ActionID:               action.ID,
		ParticipantID:          action.ParticipantID,
		Contribution:           action.Contribution,
		PaystackTransactionFee: action.PaystackTransactionFee,
		PaystackTransferFee:    action.PaystackTransferFee,
		HalverFee:              action.HalverFee,
		TotalFee:               action.TotalFee,
		TotalPaymentDue:        action.TotalPaymentDue,
		InvoiceReference:       ev.InvoiceReference,
		Status:                 models.ArrearOverdue,
	}
	if err := e.store.CreateArrear(ctx, arrear); err != nil {
		if errors.Is(err, storage.ErrDuplicateSettlement) {
			slog.Info("Charge failure already snapshotted, skipping",
				"invoice_reference", ev.InvoiceReference, "action_id", action.ID)
			return nil
		}
		return err
	}

	slog.Warn("Recurring charge failed, arrear recorded",
		"action_id", action.ID, "arrear_id", arrear.ID, "bill_id", bill.ID)
	e.notifyAll(ctx, e.chargeFailedNotifications(ctx, bill, action.ParticipantID))
	return nil
}
