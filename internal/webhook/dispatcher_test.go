package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/settlement"
)

// recordingTransitions captures every routed event.
type recordingTransitions struct {
	mu            sync.Mutex
	charges       []settlement.ChargeEvent
	transfers     []settlement.TransferEvent
	outcomes      []models.TransferOutcome
	subscriptions []settlement.SubscriptionEvent
	failures      []settlement.ChargeFailureEvent
	err           error
}

func (r *recordingTransitions) HandleChargeSuccess(_ context.Context, ev settlement.ChargeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges = append(r.charges, ev)
	return r.err
}

func (r *recordingTransitions) HandleTransferSuccess(_ context.Context, ev settlement.TransferEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, ev)
	r.outcomes = append(r.outcomes, models.TransferSuccessful)
	return r.err
}

func (r *recordingTransitions) HandleTransferFailure(_ context.Context, ev settlement.TransferEvent, outcome models.TransferOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, ev)
	r.outcomes = append(r.outcomes, outcome)
	return r.err
}

func (r *recordingTransitions) HandleSubscriptionCreated(_ context.Context, ev settlement.SubscriptionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = append(r.subscriptions, ev)
	return r.err
}

func (r *recordingTransitions) HandleChargeFailure(_ context.Context, ev settlement.ChargeFailureEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, ev)
	return r.err
}

func TestDispatcherRouting(t *testing.T) {
	actionID := uuid.New().String()
	arrearID := uuid.New().String()

	tests := []struct {
		name     string
		event    string
		payload  string
		validate func(t *testing.T, rec *recordingTransitions)
	}{
		{
			name:  "charge.success with action metadata",
			event: "charge.success",
			payload: fmt.Sprintf(`{
				"reference": "chg_1", "amount": 105048, "fees": 1524, "channel": "card",
				"paid_at": "2026-01-10T12:00:00Z",
				"authorization": {"authorization_code": "AUTH_abc"},
				"metadata": {"action_id": %q, "is_contribution": true}
			}`, actionID),
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.charges) != 1 {
					t.Fatalf("Expected 1 charge event, got %d", len(rec.charges))
				}
				ev := rec.charges[0]
				if ev.ActionID != actionID || ev.Reference != "chg_1" || ev.AmountMinor != 105048 {
					t.Errorf("Unexpected charge event: %+v", ev)
				}
				if ev.AuthorizationCode != "AUTH_abc" {
					t.Errorf("AuthorizationCode = %q", ev.AuthorizationCode)
				}
			},
		},
		{
			name:  "charge.success for a non-contribution charge is ignored",
			event: "charge.success",
			payload: `{
				"reference": "chg_card", "amount": 5000,
				"metadata": {"is_contribution": false}
			}`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.charges) != 0 {
					t.Errorf("Non-contribution charge was routed: %+v", rec.charges)
				}
			},
		},
		{
			name:  "transfer.success parses the reason once",
			event: "transfer.success",
			payload: fmt.Sprintf(`{
				"reference": "trf_1", "transfer_code": "TRF_abc", "amount": 100000,
				"reason": %q,
				"recipient": {"recipient_code": "RCP_x"}
			}`, settlement.OneTimeContributionReason(actionID)),
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.transfers) != 1 {
					t.Fatalf("Expected 1 transfer event, got %d", len(rec.transfers))
				}
				ev := rec.transfers[0]
				if ev.Parsed.Purpose != settlement.PurposeOneTimeContribution {
					t.Errorf("Purpose = %s", ev.Parsed.Purpose)
				}
				if ev.Parsed.ID.String() != actionID {
					t.Errorf("Parsed ID = %s, want %s", ev.Parsed.ID, actionID)
				}
				if rec.outcomes[0] != models.TransferSuccessful {
					t.Errorf("Outcome = %s", rec.outcomes[0])
				}
			},
		},
		{
			name:  "transfer.failed routes with failed outcome",
			event: "transfer.failed",
			payload: fmt.Sprintf(`{
				"reference": "trf_2", "reason": %q
			}`, settlement.ArrearSettlementReason(arrearID)),
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.transfers) != 1 || rec.outcomes[0] != models.TransferFailed {
					t.Fatalf("Expected 1 failed transfer, got %+v / %v", rec.transfers, rec.outcomes)
				}
				if rec.transfers[0].Parsed.Purpose != settlement.PurposeArrearSettlement {
					t.Errorf("Purpose = %s", rec.transfers[0].Parsed.Purpose)
				}
			},
		},
		{
			name:  "transfer.reversed routes with reversed outcome",
			event: "transfer.reversed",
			payload: fmt.Sprintf(`{
				"reference": "trf_3", "reason": %q
			}`, settlement.RecurringContributionReason(actionID)),
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.outcomes) != 1 || rec.outcomes[0] != models.TransferReversed {
					t.Fatalf("Expected reversed outcome, got %v", rec.outcomes)
				}
			},
		},
		{
			name:  "transfer with unroutable reason is not enqueued",
			event: "transfer.success",
			payload: `{
				"reference": "trf_4", "reason": "Payout for services rendered"
			}`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.transfers) != 0 {
					t.Errorf("Unroutable transfer was routed: %+v", rec.transfers)
				}
			},
		},
		{
			name:  "subscription.create",
			event: "subscription.create",
			payload: `{
				"subscription_code": "SUB_1", "email_token": "tok_1",
				"next_payment_date": "2026-02-01T00:00:00Z",
				"plan": {"plan_code": "PLN_1"},
				"authorization": {"signature": "SIG_1"}
			}`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.subscriptions) != 1 {
					t.Fatalf("Expected 1 subscription event, got %d", len(rec.subscriptions))
				}
				ev := rec.subscriptions[0]
				if ev.PlanCode != "PLN_1" || ev.SubscriptionCode != "SUB_1" || ev.CardSignature != "SIG_1" {
					t.Errorf("Unexpected subscription event: %+v", ev)
				}
			},
		},
		{
			name:  "invoice.payment_failed",
			event: "invoice.payment_failed",
			payload: `{
				"invoice_code": "INV_9",
				"subscription": {"subscription_code": "SUB_9"}
			}`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.failures) != 1 || rec.failures[0].SubscriptionCode != "SUB_9" {
					t.Fatalf("Expected 1 charge failure for SUB_9, got %+v", rec.failures)
				}
				if rec.failures[0].InvoiceReference != "INV_9" {
					t.Errorf("Invoice reference = %q, want INV_9", rec.failures[0].InvoiceReference)
				}
			},
		},
		{
			name:    "unknown event is ignored",
			event:   "customer.identification.success",
			payload: `{"anything": true}`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.charges)+len(rec.transfers)+len(rec.subscriptions)+len(rec.failures) != 0 {
					t.Error("Unknown event reached a transition")
				}
			},
		},
		{
			name:    "malformed payload is dropped without routing",
			event:   "charge.success",
			payload: `{not json`,
			validate: func(t *testing.T, rec *recordingTransitions) {
				if len(rec.charges) != 0 {
					t.Error("Malformed payload was routed")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingTransitions{}
			d := NewDispatcher(rec, 2)
			d.Dispatch(tt.event, []byte(tt.payload))
			d.Close()
			tt.validate(t, rec)
		})
	}
}

func TestDispatcherSurvivesTransitionErrors(t *testing.T) {
	rec := &recordingTransitions{err: errors.New("store unavailable")}
	d := NewDispatcher(rec, 1)
	d.Dispatch("invoice.payment_failed", []byte(`{"subscription": {"subscription_code": "SUB_1"}}`))
	d.Dispatch("invoice.payment_failed", []byte(`{"subscription": {"subscription_code": "SUB_2"}}`))
	d.Close()

	if len(rec.failures) != 2 {
		t.Errorf("Expected both events to be attempted, got %d", len(rec.failures))
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandlerSignatureVerification(t *testing.T) {
	const secret = "sk_test_secret"
	body := `{"event": "invoice.payment_failed", "data": {"subscription": {"subscription_code": "SUB_1"}}}`

	tests := []struct {
		name       string
		signature  string
		body       string
		wantStatus int
		wantRouted int
	}{
		{
			name:       "valid signature routes the event",
			signature:  signBody(secret, []byte(body)),
			body:       body,
			wantStatus: http.StatusOK,
			wantRouted: 1,
		},
		{
			name:       "wrong signature is rejected",
			signature:  signBody("other_secret", []byte(body)),
			body:       body,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing signature is rejected",
			body:       body,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "tampered body is rejected",
			signature:  signBody(secret, []byte(body)),
			body:       strings.Replace(body, "SUB_1", "SUB_2", 1),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "signed garbage is a bad request",
			signature:  signBody(secret, []byte("{nope")),
			body:       "{nope",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingTransitions{}
			d := NewDispatcher(rec, 1)
			handler := NewHandler(secret, d)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("x-paystack-signature", tt.signature)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			d.Close()

			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if len(rec.failures) != tt.wantRouted {
				t.Errorf("Routed %d events, want %d", len(rec.failures), tt.wantRouted)
			}
		})
	}
}
