package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halverapp/halver-backend/internal/fees"
	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/storage"
)

// chargeableStatuses are the action states from which a participant may
// initiate (or re-initiate) payment.
var chargeableStatuses = map[models.ActionStatus]bool{
	models.StatusPending: true,
	models.StatusOverdue: true,
}

// InitiateContribution starts collection for an action the participant has
// agreed to: a one-off charge for one-time bills, a subscription for
// recurring ones. No local state is mutated before the gateway accepts the
// request; gateway failures surface synchronously and the participant simply
// retries.
func (e *Engine) InitiateContribution(ctx context.Context, actionID string) (*paystack.Response, error) {
	action, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if !chargeableStatuses[action.Status] {
		return nil, fmt.Errorf("action %s in status %s: %w", actionID, action.Status, ErrNotChargeable)
	}

	bill, err := e.store.GetBill(ctx, action.BillID)
	if err != nil {
		return nil, err
	}
	participant, err := e.store.GetUser(ctx, action.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.DefaultAuthorizationCode == "" {
		return nil, fmt.Errorf("participant %s: %w", participant.ID, ErrNoCardAuthorization)
	}

	if !bill.Interval.Recurring() {
		return e.chargeOnce(ctx, bill, action, participant)
	}
	return nil, e.subscribe(ctx, bill, action, participant)
}

// chargeOnce issues a one-time charge against the participant's stored card.
// The metadata identifiers are the only correlation channel the
// charge.success webhook will have.
func (e *Engine) chargeOnce(ctx context.Context, bill *models.Bill, action *models.BillAction, participant *models.User) (*paystack.Response, error) {
	resp, err := e.gateway.ChargeAuthorization(ctx, paystack.ChargeRequest{
		Email:             participant.Email,
		AuthorizationCode: participant.DefaultAuthorizationCode,
		Amount:            fees.ToMinorUnits(action.TotalPaymentDue),
		Metadata: paystack.ChargeMetadata{
			ActionID:       action.ID,
			BillID:         bill.ID,
			ParticipantID:  participant.ID,
			CreditorID:     bill.CreditorID,
			IsContribution: true,
		},
	})
	if err != nil {
		return resp, fmt.Errorf("charge initiation for action %s: %w", action.ID, err)
	}
	return resp, nil
}

// subscribe creates the gateway subscription backing a recurring action.
// Returns ErrSubscriptionExists if one is already in place.
func (e *Engine) subscribe(ctx context.Context, bill *models.Bill, action *models.BillAction, participant *models.User) error {
	if action.PaystackSubscriptionID != "" {
		return fmt.Errorf("action %s: %w", action.ID, ErrSubscriptionExists)
	}

	planCode := action.PaystackPlanCode
	if planCode == "" {
		plan, err := e.gateway.CreatePlan(ctx, paystack.PlanRequest{
			Name:     fmt.Sprintf("%s - %s", bill.Name, participant.Name),
			Amount:   fees.ToMinorUnits(action.TotalPaymentDue),
			Interval: string(bill.Interval),
		})
		if err != nil {
			return fmt.Errorf("plan creation for action %s: %w", action.ID, err)
		}
		if err := e.store.SetActionPlan(ctx, action.ID, plan.PlanCode); err != nil {
			return err
		}
		if err := e.store.CreatePaystackPlan(ctx, &models.PaystackPlan{
			ActionID: action.ID,
			PlanCode: plan.PlanCode,
			Name:     plan.Name,
			Amount:   fees.FromMinorUnits(plan.Amount),
			Interval: bill.Interval,
		}); err != nil {
			return err
		}
		planCode = plan.PlanCode
	}

	start, err := e.subscriptionStart(ctx, bill)
	if err != nil {
		return err
	}

	_, err = e.gateway.CreateSubscription(ctx, paystack.SubscriptionRequest{
		Customer:      participant.Email,
		Plan:          planCode,
		Authorization: participant.DefaultAuthorizationCode,
		StartDate:     start.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("subscription creation for action %s: %w", action.ID, err)
	}
	// The subscription row and the action's ongoing status arrive with the
	// subscription.create webhook, not here.
	return nil
}

// subscriptionStart resolves when a new subscription should begin charging.
// A future first-charge date is used as-is. Once that date has passed, the
// first sibling to subscribe anchors the cycle and everyone else aligns to
// its next payment date; with no sibling yet, the cycle restarts tomorrow at
// start of day so the gateway does not reject a date in the past. The
// advanced date is written back to the bill so a second participant
// initiating before the subscription.create webhook lands sees the same
// anchor.
//
// The sibling lookup is read-then-decide: two participants subscribing at the
// same instant can both see "no sibling" and anchor separately. Known gap,
// accepted at this concurrency level.
func (e *Engine) subscriptionStart(ctx context.Context, bill *models.Bill) (time.Time, error) {
	now := e.clock()
	if bill.FirstChargeDate.After(now) {
		return bill.FirstChargeDate, nil
	}

	sibling, err := e.store.OldestActiveSubscriptionForBill(ctx, bill.ID)
	if err == nil {
		return sibling.NextPaymentDate, nil
	}
	if !isNotFound(err) {
		return time.Time{}, err
	}

	tomorrow := now.Add(24 * time.Hour)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
	if err := e.store.UpdateBillFirstChargeDate(ctx, bill.ID, start); err != nil {
		return time.Time{}, err
	}
	bill.FirstChargeDate = start
	return start, nil
}

// InitiateArrearCharge collects a missed recurring payment. The charge uses
// the arrear's snapshotted amounts, not the parent action's current fees.
func (e *Engine) InitiateArrearCharge(ctx context.Context, arrearID string) (*paystack.Response, error) {
	arrear, err := e.store.GetArrear(ctx, arrearID)
	if err != nil {
		return nil, err
	}
	if arrear.Status != models.ArrearOverdue && arrear.Status != models.ArrearFailedTransfer && arrear.Status != models.ArrearReversedTransfer {
		return nil, fmt.Errorf("arrear %s in status %s: %w", arrearID, arrear.Status, ErrNotChargeable)
	}

	bill, err := e.store.GetBill(ctx, arrear.BillID)
	if err != nil {
		return nil, err
	}
	participant, err := e.store.GetUser(ctx, arrear.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.DefaultAuthorizationCode == "" {
		return nil, fmt.Errorf("participant %s: %w", participant.ID, ErrNoCardAuthorization)
	}

	resp, err := e.gateway.ChargeAuthorization(ctx, paystack.ChargeRequest{
		Email:             participant.Email,
		AuthorizationCode: participant.DefaultAuthorizationCode,
		Amount:            fees.ToMinorUnits(arrear.TotalPaymentDue),
		Metadata: paystack.ChargeMetadata{
			ActionID:       arrear.ActionID,
			ArrearID:       arrear.ID,
			BillID:         bill.ID,
			ParticipantID:  participant.ID,
			CreditorID:     bill.CreditorID,
			IsContribution: true,
		},
	})
	if err != nil {
		return resp, fmt.Errorf("arrear charge initiation for %s: %w", arrearID, err)
	}
	return resp, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
