// Package service holds the user-facing operations that sit in front of the
// settlement machinery: bill creation and the status summaries built from it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halverapp/halver-backend/internal/fees"
	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/settlement"
	"github.com/halverapp/halver-backend/internal/storage"
)

var (
	// ErrNoParticipants means the bill was submitted without anyone to pay it.
	ErrNoParticipants = errors.New("service: bill has no participants")

	// ErrAmountMismatch means the sum of per-participant payment dues does
	// not reconcile with the bill's total amount due.
	ErrAmountMismatch = errors.New("service: contributions plus fees do not reconcile with total amount due")

	// ErrInvalidShare means a participant entry is unusable: no identifier,
	// both identifiers, or a non-positive contribution.
	ErrInvalidShare = errors.New("service: invalid participant share")
)

// ParticipantShare is one participant's slice of a new bill. Exactly one of
// UserID and Phone is set; Phone creates an unregistered stub.
type ParticipantShare struct {
	UserID       string
	Phone        string
	Name         string
	Contribution decimal.Decimal
}

// CreateBillInput carries everything needed to create a bill and its actions.
type CreateBillInput struct {
	Name            string
	CreatorID       string
	CreditorID      string
	Currency        string
	TotalAmountDue  decimal.Decimal
	Interval        models.RecurrenceInterval
	FirstChargeDate time.Time
	Deadline        time.Time
	IsDiscreet      bool
	Participants    []ParticipantShare
}

// BillService creates bills and answers questions about them.
type BillService struct {
	store   storage.Store
	gateway settlement.Gateway
}

// NewBillService creates a bill service.
func NewBillService(store storage.Store, gateway settlement.Gateway) *BillService {
	return &BillService{store: store, gateway: gateway}
}

func validateShare(share ParticipantShare) error {
	if (share.UserID == "") == (share.Phone == "") {
		return fmt.Errorf("%w: exactly one of user id and phone must be set", ErrInvalidShare)
	}
	if !share.Contribution.IsPositive() {
		return fmt.Errorf("%w: contribution must be positive", ErrInvalidShare)
	}
	return nil
}

// CreateBill validates the input, runs the fee engine over every
// contribution, reconciles the total and atomically creates the bill with
// one action per participant. Registered participants start pending,
// phone-only stubs start unregistered. For recurring bills, gateway plans
// are created afterwards in one concurrent batch; a plan failure leaves the
// action plan-less and the plan is created lazily on first initiation
// instead.
func (s *BillService) CreateBill(ctx context.Context, input CreateBillInput) (*models.Bill, []*models.BillAction, error) {
	if len(input.Participants) == 0 {
		return nil, nil, ErrNoParticipants
	}
	if input.CreditorID == "" {
		return nil, nil, fmt.Errorf("%w: bill has no creditor", ErrInvalidShare)
	}

	if _, err := s.store.GetUser(ctx, input.CreditorID); err != nil {
		return nil, nil, fmt.Errorf("creditor %s: %w", input.CreditorID, err)
	}

	actions := make([]*models.BillAction, 0, len(input.Participants))
	totalPayable := decimal.Zero
	for _, share := range input.Participants {
		if err := validateShare(share); err != nil {
			return nil, nil, err
		}

		breakdown, err := fees.Compute(share.Contribution)
		if err != nil {
			return nil, nil, fmt.Errorf("computing fees for contribution %s: %w", share.Contribution, err)
		}

		action := &models.BillAction{
			Contribution:           share.Contribution,
			PaystackTransactionFee: breakdown.PaystackTransactionFee,
			PaystackTransferFee:    breakdown.PaystackTransferFee,
			HalverFee:              breakdown.HalverFee,
			TotalFee:               breakdown.TotalFee,
			TotalPaymentDue:        breakdown.TotalPayable,
			Status:                 models.StatusPending,
		}
		if share.UserID != "" {
			if _, err := s.store.GetUser(ctx, share.UserID); err != nil {
				return nil, nil, fmt.Errorf("participant %s: %w", share.UserID, err)
			}
			action.ParticipantID = share.UserID
		} else {
			stub := &models.UnregisteredParticipant{Phone: share.Phone, Name: share.Name}
			if err := s.store.CreateUnregisteredParticipant(ctx, stub); err != nil {
				return nil, nil, err
			}
			action.UnregisteredParticipantID = stub.ID
			action.Status = models.StatusUnregistered
		}

		actions = append(actions, action)
		totalPayable = totalPayable.Add(breakdown.TotalPayable)
	}

	if !totalPayable.Equal(input.TotalAmountDue) {
		return nil, nil, fmt.Errorf("%w: dues sum to %s, bill says %s",
			ErrAmountMismatch, totalPayable, input.TotalAmountDue)
	}

	bill := &models.Bill{
		Name:            input.Name,
		CreatorID:       input.CreatorID,
		CreditorID:      input.CreditorID,
		Currency:        input.Currency,
		TotalAmountDue:  input.TotalAmountDue,
		Interval:        input.Interval,
		FirstChargeDate: input.FirstChargeDate,
		Deadline:        input.Deadline,
		IsDiscreet:      input.IsDiscreet,
	}
	if err := s.store.CreateBillWithActions(ctx, bill, actions); err != nil {
		return nil, nil, err
	}
	slog.Info("Bill created", "bill_id", bill.ID, "actions", len(actions), "interval", bill.Interval)

	if bill.Interval.Recurring() {
		s.createPlans(ctx, bill, actions)
	}
	return bill, actions, nil
}

// createPlans provisions one gateway plan per action in a single concurrent
// batch. Failures are logged, not returned: initiation creates missing plans
// lazily, so a gateway hiccup here never fails bill creation.
func (s *BillService) createPlans(ctx context.Context, bill *models.Bill, actions []*models.BillAction) {
	reqs := make([]paystack.PlanRequest, len(actions))
	for i, action := range actions {
		reqs[i] = paystack.PlanRequest{
			Name:     fmt.Sprintf("%s - %s", bill.Name, action.ID),
			Amount:   fees.ToMinorUnits(action.TotalPaymentDue),
			Interval: string(bill.Interval),
		}
	}

	for _, res := range s.gateway.CreatePlans(ctx, reqs) {
		action := actions[res.Index]
		if res.Err != nil {
			slog.Error("Plan creation failed, deferring to initiation",
				"bill_id", bill.ID, "action_id", action.ID, "error", res.Err)
			continue
		}
		if err := s.store.SetActionPlan(ctx, action.ID, res.Plan.PlanCode); err != nil {
			slog.Error("Failed to attach plan to action",
				"action_id", action.ID, "plan_code", res.Plan.PlanCode, "error", err)
			continue
		}
		if err := s.store.CreatePaystackPlan(ctx, &models.PaystackPlan{
			ActionID: action.ID,
			PlanCode: res.Plan.PlanCode,
			Name:     res.Plan.Name,
			Amount:   fees.FromMinorUnits(res.Plan.Amount),
			Interval: bill.Interval,
		}); err != nil {
			slog.Error("Failed to mirror plan", "plan_code", res.Plan.PlanCode, "error", err)
			continue
		}
		action.PaystackPlanCode = res.Plan.PlanCode
	}
}

// BillStatus is the bill-level settlement summary derived from its actions.
type BillStatus string

const (
	BillPending          BillStatus = "pending"
	BillPartiallySettled BillStatus = "partially_settled"
	BillSettled          BillStatus = "settled"
)

// Status summarizes a bill from its actions. Opted-out and cancelled actions
// count as resolved: a bill everyone else has paid is settled even if one
// participant declined.
func (s *BillService) Status(ctx context.Context, billID string) (BillStatus, error) {
	actions, err := s.store.ListBillActions(ctx, billID)
	if err != nil {
		return "", err
	}

	settled, open := 0, 0
	for _, action := range actions {
		switch {
		case action.Status.Terminal(), action.Status == models.StatusOngoing:
			settled++
		default:
			open++
		}
	}
	switch {
	case open == 0:
		return BillSettled, nil
	case settled == 0:
		return BillPending, nil
	default:
		return BillPartiallySettled, nil
	}
}
