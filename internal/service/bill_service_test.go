package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/halverapp/halver-backend/internal/fees"
	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/storage"
	"github.com/halverapp/halver-backend/internal/storage/sqlite"
)

// stubGateway satisfies the gateway interface; only plan creation matters to
// the bill service.
type stubGateway struct {
	planCounter int
	planFail    bool
}

func (g *stubGateway) ChargeAuthorization(context.Context, paystack.ChargeRequest) (*paystack.Response, error) {
	return &paystack.Response{Status: true}, nil
}

func (g *stubGateway) CreatePlan(_ context.Context, req paystack.PlanRequest) (*paystack.Plan, error) {
	if g.planFail {
		return nil, errors.New("gateway down")
	}
	g.planCounter++
	return &paystack.Plan{PlanCode: fmt.Sprintf("PLN_svc%d", g.planCounter), Name: req.Name, Amount: req.Amount}, nil
}

func (g *stubGateway) CreatePlans(ctx context.Context, reqs []paystack.PlanRequest) []paystack.PlanResult {
	results := make([]paystack.PlanResult, len(reqs))
	for i, req := range reqs {
		plan, err := g.CreatePlan(ctx, req)
		results[i] = paystack.PlanResult{Index: i, Plan: plan, Err: err}
	}
	return results
}

func (g *stubGateway) CreateSubscription(context.Context, paystack.SubscriptionRequest) (*paystack.Subscription, error) {
	return &paystack.Subscription{}, nil
}

func (g *stubGateway) DisableSubscriptions(_ context.Context, keys []paystack.SubscriptionKey) []paystack.DisableResult {
	return make([]paystack.DisableResult, len(keys))
}

func (g *stubGateway) InitiateTransfer(context.Context, paystack.TransferRequest) (*paystack.Transfer, error) {
	return &paystack.Transfer{}, nil
}

func setupService(t *testing.T) (*BillService, storage.Store, *stubGateway) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "halver-service-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gateway := &stubGateway{}
	return NewBillService(store, gateway), store, gateway
}

func seedUser(t *testing.T, ctx context.Context, store storage.Store, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// payableFor mirrors what a client would precompute before submitting a bill.
func payableFor(t *testing.T, contributions ...decimal.Decimal) decimal.Decimal {
	t.Helper()
	total := decimal.Zero
	for _, c := range contributions {
		breakdown, err := fees.Compute(c)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		total = total.Add(breakdown.TotalPayable)
	}
	return total
}

func TestCreateBill(t *testing.T) {
	svc, store, gateway := setupService(t)
	ctx := context.Background()

	creditor := seedUser(t, ctx, store, "creditor")
	alice := seedUser(t, ctx, store, "alice")
	bob := seedUser(t, ctx, store, "bob")

	share := decimal.NewFromInt(1000)

	t.Run("One-time bill creates one pending action per participant", func(t *testing.T) {
		bill, actions, err := svc.CreateBill(ctx, CreateBillInput{
			Name:           "Dinner",
			CreatorID:      creditor.ID,
			CreditorID:     creditor.ID,
			Currency:       "NGN",
			TotalAmountDue: payableFor(t, share, share),
			Interval:       models.IntervalNone,
			Deadline:       time.Now().Add(72 * time.Hour),
			Participants: []ParticipantShare{
				{UserID: alice.ID, Contribution: share},
				{UserID: bob.ID, Contribution: share},
			},
		})
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		if bill.ID == "" {
			t.Error("Expected bill ID to be generated")
		}
		if len(actions) != 2 {
			t.Fatalf("Expected 2 actions, got %d", len(actions))
		}
		for _, action := range actions {
			if action.Status != models.StatusPending {
				t.Errorf("Action status = %s, want %s", action.Status, models.StatusPending)
			}
			if !action.TotalPaymentDue.Equal(action.Contribution.Add(action.TotalFee)) {
				t.Errorf("TotalPaymentDue %s != contribution %s + fee %s",
					action.TotalPaymentDue, action.Contribution, action.TotalFee)
			}
		}
		if gateway.planCounter != 0 {
			t.Errorf("One-time bill created %d plans", gateway.planCounter)
		}

		status, err := svc.Status(ctx, bill.ID)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status != BillPending {
			t.Errorf("Status = %s, want %s", status, BillPending)
		}
	})

	t.Run("Unregistered phone participant starts unregistered", func(t *testing.T) {
		_, actions, err := svc.CreateBill(ctx, CreateBillInput{
			Name:           "Rent",
			CreatorID:      creditor.ID,
			CreditorID:     creditor.ID,
			Currency:       "NGN",
			TotalAmountDue: payableFor(t, share, share),
			Interval:       models.IntervalNone,
			Deadline:       time.Now().Add(72 * time.Hour),
			Participants: []ParticipantShare{
				{UserID: alice.ID, Contribution: share},
				{Phone: "+2348011111111", Name: "Chidi", Contribution: share},
			},
		})
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		var stubAction *models.BillAction
		for _, action := range actions {
			if action.UnregisteredParticipantID != "" {
				stubAction = action
			}
		}
		if stubAction == nil {
			t.Fatal("Expected an action for the unregistered participant")
		}
		if stubAction.Status != models.StatusUnregistered {
			t.Errorf("Status = %s, want %s", stubAction.Status, models.StatusUnregistered)
		}
	})

	t.Run("Recurring bill provisions a plan per action", func(t *testing.T) {
		before := gateway.planCounter
		_, actions, err := svc.CreateBill(ctx, CreateBillInput{
			Name:            "Netflix",
			CreatorID:       creditor.ID,
			CreditorID:      creditor.ID,
			Currency:        "NGN",
			TotalAmountDue:  payableFor(t, share, share),
			Interval:        models.IntervalMonthly,
			FirstChargeDate: time.Now().Add(24 * time.Hour),
			Deadline:        time.Now().Add(30 * 24 * time.Hour),
			Participants: []ParticipantShare{
				{UserID: alice.ID, Contribution: share},
				{UserID: bob.ID, Contribution: share},
			},
		})
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		if gateway.planCounter-before != 2 {
			t.Errorf("Expected 2 plans, got %d", gateway.planCounter-before)
		}
		for _, action := range actions {
			stored, err := store.GetAction(ctx, action.ID)
			if err != nil {
				t.Fatalf("GetAction failed: %v", err)
			}
			if stored.PaystackPlanCode == "" {
				t.Errorf("Action %s has no plan code", action.ID)
			}
		}
	})

	t.Run("Plan failure does not fail bill creation", func(t *testing.T) {
		gateway.planFail = true
		defer func() { gateway.planFail = false }()

		_, actions, err := svc.CreateBill(ctx, CreateBillInput{
			Name:            "Gym",
			CreatorID:       creditor.ID,
			CreditorID:      creditor.ID,
			Currency:        "NGN",
			TotalAmountDue:  payableFor(t, share),
			Interval:        models.IntervalMonthly,
			FirstChargeDate: time.Now().Add(24 * time.Hour),
			Deadline:        time.Now().Add(30 * 24 * time.Hour),
			Participants:    []ParticipantShare{{UserID: alice.ID, Contribution: share}},
		})
		if err != nil {
			t.Fatalf("CreateBill failed: %v", err)
		}
		stored, err := store.GetAction(ctx, actions[0].ID)
		if err != nil {
			t.Fatalf("GetAction failed: %v", err)
		}
		if stored.PaystackPlanCode != "" {
			t.Errorf("Expected plan-less action, got %q", stored.PaystackPlanCode)
		}
	})
}

func TestCreateBillValidation(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	creditor := seedUser(t, ctx, store, "creditor")
	alice := seedUser(t, ctx, store, "alice")
	share := decimal.NewFromInt(1000)

	base := CreateBillInput{
		Name:           "Dinner",
		CreatorID:      creditor.ID,
		CreditorID:     creditor.ID,
		Currency:       "NGN",
		TotalAmountDue: payableFor(t, share),
		Interval:       models.IntervalNone,
		Deadline:       time.Now().Add(72 * time.Hour),
		Participants:   []ParticipantShare{{UserID: alice.ID, Contribution: share}},
	}

	tests := []struct {
		name    string
		mutate  func(input *CreateBillInput)
		wantErr error
	}{
		{
			name:    "no participants",
			mutate:  func(in *CreateBillInput) { in.Participants = nil },
			wantErr: ErrNoParticipants,
		},
		{
			name: "total does not reconcile",
			mutate: func(in *CreateBillInput) {
				in.TotalAmountDue = in.TotalAmountDue.Add(decimal.NewFromInt(1))
			},
			wantErr: ErrAmountMismatch,
		},
		{
			name: "share with both identifiers",
			mutate: func(in *CreateBillInput) {
				in.Participants = []ParticipantShare{{UserID: alice.ID, Phone: "+234", Contribution: share}}
			},
			wantErr: ErrInvalidShare,
		},
		{
			name: "share with neither identifier",
			mutate: func(in *CreateBillInput) {
				in.Participants = []ParticipantShare{{Contribution: share}}
			},
			wantErr: ErrInvalidShare,
		},
		{
			name: "zero contribution",
			mutate: func(in *CreateBillInput) {
				in.Participants = []ParticipantShare{{UserID: alice.ID, Contribution: decimal.Zero}}
			},
			wantErr: ErrInvalidShare,
		},
		{
			name: "unknown participant",
			mutate: func(in *CreateBillInput) {
				in.Participants = []ParticipantShare{{UserID: "ghost", Contribution: share}}
			},
			wantErr: storage.ErrNotFound,
		},
		{
			name:    "unknown creditor",
			mutate:  func(in *CreateBillInput) { in.CreditorID = "ghost" },
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := base
			input.Participants = append([]ParticipantShare(nil), base.Participants...)
			tt.mutate(&input)
			_, _, err := svc.CreateBill(ctx, input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateBill error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBillStatusSummary(t *testing.T) {
	svc, store, _ := setupService(t)
	ctx := context.Background()

	creditor := seedUser(t, ctx, store, "creditor")
	alice := seedUser(t, ctx, store, "alice")
	bob := seedUser(t, ctx, store, "bob")
	share := decimal.NewFromInt(500)

	bill, actions, err := svc.CreateBill(ctx, CreateBillInput{
		Name:           "Trip",
		CreatorID:      creditor.ID,
		CreditorID:     creditor.ID,
		Currency:       "NGN",
		TotalAmountDue: payableFor(t, share, share),
		Interval:       models.IntervalNone,
		Deadline:       time.Now().Add(72 * time.Hour),
		Participants: []ParticipantShare{
			{UserID: alice.ID, Contribution: share},
			{UserID: bob.ID, Contribution: share},
		},
	})
	if err != nil {
		t.Fatalf("CreateBill failed: %v", err)
	}

	assertStatus := func(want BillStatus) {
		t.Helper()
		status, err := svc.Status(ctx, bill.ID)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status != want {
			t.Errorf("Status = %s, want %s", status, want)
		}
	}

	assertStatus(BillPending)

	if err := store.UpdateActionStatus(ctx, actions[0].ID, models.StatusCompleted, models.StatusPending); err != nil {
		t.Fatalf("UpdateActionStatus failed: %v", err)
	}
	assertStatus(BillPartiallySettled)

	if err := store.UpdateActionStatus(ctx, actions[1].ID, models.StatusOptedOut, models.StatusPending); err != nil {
		t.Fatalf("UpdateActionStatus failed: %v", err)
	}
	assertStatus(BillSettled)
}
