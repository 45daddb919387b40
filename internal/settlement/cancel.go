package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/storage"
)

// CancellationReport describes the per-action outcome of a bill
// cancellation.
type CancellationReport struct {
	// Cancelled holds the IDs of actions moved to StatusCancelled.
	Cancelled []string

	// Failed holds the IDs of actions whose subscriptions the gateway
	// refused to disable. Their status is untouched; the cancellation can be
	// retried for just these.
	Failed []string

	// Skipped holds the IDs of actions already in a terminal status.
	Skipped []string
}

// CancelBill cancels every non-terminal action on a bill. Recurring actions
// with a live subscription are disabled at the gateway first; an action whose
// subscription refuses to disable keeps its status so money never keeps
// flowing for a contribution the ledger says is cancelled.
func (e *Engine) CancelBill(ctx context.Context, billID string) (*CancellationReport, error) {
	actions, err := e.store.ListBillActions(ctx, billID)
	if err != nil {
		return nil, err
	}

	report := &CancellationReport{}

	// Actions with a live subscription need a gateway round trip; the rest
	// cancel locally.
	var subscribed []*models.BillAction
	var subs []*models.PaystackSubscription
	var keys []paystack.SubscriptionKey
	for _, action := range actions {
		if action.Status.Terminal() {
			report.Skipped = append(report.Skipped, action.ID)
			continue
		}
		sub, err := e.store.GetSubscriptionForAction(ctx, action.ID)
		if errors.Is(err, storage.ErrNotFound) {
			if err := e.cancelAction(ctx, action.ID); err != nil {
				return nil, err
			}
			report.Cancelled = append(report.Cancelled, action.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		subscribed = append(subscribed, action)
		subs = append(subs, sub)
		keys = append(keys, paystack.SubscriptionKey{
			Code:       sub.SubscriptionCode,
			EmailToken: sub.EmailToken,
		})
	}

	for _, res := range e.gateway.DisableSubscriptions(ctx, keys) {
		action, sub := subscribed[res.Index], subs[res.Index]
		if res.Err != nil {
			slog.Error("Subscription disable failed, action left active",
				"action_id", action.ID, "subscription_code", sub.SubscriptionCode, "error", res.Err)
			report.Failed = append(report.Failed, action.ID)
			continue
		}
		if err := e.store.MarkSubscriptionInactive(ctx, sub.ID); err != nil {
			return nil, err
		}
		if err := e.cancelAction(ctx, action.ID); err != nil {
			return nil, err
		}
		report.Cancelled = append(report.Cancelled, action.ID)
	}

	slog.Info("Bill cancellation processed", "bill_id", billID,
		"cancelled", len(report.Cancelled), "failed", len(report.Failed), "skipped", len(report.Skipped))
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("bill %s: %w", billID, ErrPartialCancellation)
	}
	return report, nil
}

// cancelAction moves an action to cancelled from any non-terminal status.
// A concurrent transition to a terminal status loses the race gracefully.
func (e *Engine) cancelAction(ctx context.Context, actionID string) error {
	err := e.store.UpdateActionStatus(ctx, actionID, models.StatusCancelled,
		models.StatusUnregistered,
		models.StatusPending,
		models.StatusOverdue,
		models.StatusPendingTransfer,
		models.StatusOngoing,
		models.StatusFailedTransfer,
		models.StatusReversedTransfer,
		models.StatusLastPaymentFailed,
	)
	if errors.Is(err, storage.ErrStaleStatus) {
		slog.Info("Action reached a terminal status before cancellation", "action_id", actionID)
		return nil
	}
	return err
}

// OptOut lets a participant decline a bill before paying. Only actions that
// have not yet moved money can opt out.
func (e *Engine) OptOut(ctx context.Context, actionID string) error {
	err := e.store.UpdateActionStatus(ctx, actionID, models.StatusOptedOut,
		models.StatusPending, models.StatusOverdue)
	if errors.Is(err, storage.ErrStaleStatus) {
		return fmt.Errorf("action %s: %w", actionID, ErrNotChargeable)
	}
	if err != nil {
		return err
	}
	slog.Info("Participant opted out", "action_id", actionID)
	return nil
}

// ForgiveArrear writes off an unpaid arrear at the creditor's request. Once
// a charge is in flight the arrear is past forgiving.
func (e *Engine) ForgiveArrear(ctx context.Context, arrearID string) error {
	err := e.store.UpdateArrearStatus(ctx, arrearID, models.ArrearForgiven,
		models.ArrearOverdue, models.ArrearFailedTransfer, models.ArrearReversedTransfer)
	if errors.Is(err, storage.ErrStaleStatus) {
		return fmt.Errorf("arrear %s: %w", arrearID, ErrNotChargeable)
	}
	if err != nil {
		return err
	}
	slog.Info("Arrear forgiven", "arrear_id", arrearID)
	return nil
}
