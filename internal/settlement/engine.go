// Package settlement implements the contribution settlement state machine:
// the status transitions a bill action or arrear moves through as charge and
// transfer webhooks arrive, plus the user-initiated escape hatches (opt-out,
// cancellation, arrear forgiveness).
//
// Every transition re-fetches current entity state and mutates it with
// compare-and-set store operations; webhook tasks run concurrently and are
// delivered at least once, so nothing here may trust in-memory state across
// an await point.
package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/halverapp/halver-backend/internal/notify"
	"github.com/halverapp/halver-backend/internal/paystack"
	"github.com/halverapp/halver-backend/internal/storage"
)

var (
	// ErrSubscriptionExists signals a duplicate recurring setup attempt.
	// Surfaces to the caller as a conflict, never as a second subscription.
	ErrSubscriptionExists = errors.New("settlement: action already has a subscription")

	// ErrNoCardAuthorization means the participant has no stored card to
	// charge.
	ErrNoCardAuthorization = errors.New("settlement: participant has no card authorization")

	// ErrNoRecipient means the creditor has no transfer recipient configured,
	// so collected money cannot be settled out.
	ErrNoRecipient = errors.New("settlement: creditor has no transfer recipient")

	// ErrPartialCancellation reports that some subscriptions refused to
	// disable during bill cancellation; their actions were left untouched.
	ErrPartialCancellation = errors.New("settlement: some actions could not be cancelled")

	// ErrNotChargeable means the action's current status does not allow
	// initiating a contribution.
	ErrNotChargeable = errors.New("settlement: action is not chargeable in its current status")
)

// Gateway is the slice of the payment gateway the settlement flow needs.
// *paystack.Client satisfies it; tests inject fakes.
type Gateway interface {
	ChargeAuthorization(ctx context.Context, req paystack.ChargeRequest) (*paystack.Response, error)
	CreatePlan(ctx context.Context, req paystack.PlanRequest) (*paystack.Plan, error)
	CreatePlans(ctx context.Context, reqs []paystack.PlanRequest) []paystack.PlanResult
	CreateSubscription(ctx context.Context, req paystack.SubscriptionRequest) (*paystack.Subscription, error)
	DisableSubscriptions(ctx context.Context, keys []paystack.SubscriptionKey) []paystack.DisableResult
	InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (*paystack.Transfer, error)
}

// Notifier fans out push notifications. *notify.Service satisfies it.
type Notifier interface {
	Send(ctx context.Context, batch []notify.Notification) error
}

// Engine drives the settlement state machine. All dependencies are injected;
// the engine holds no hidden shared state.
type Engine struct {
	store    storage.Store
	gateway  Gateway
	notifier Notifier
	clock    func() time.Time
}

// NewEngine creates a settlement engine.
func NewEngine(store storage.Store, gateway Gateway, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		clock:    time.Now,
	}
}

// notifyAll dispatches a notification batch without letting delivery problems
// leak into the financial transition that triggered them.
func (e *Engine) notifyAll(ctx context.Context, batch []notify.Notification) {
	if len(batch) == 0 {
		return
	}
	if err := e.notifier.Send(ctx, batch); err != nil {
		slog.Error("Notification dispatch failed", "error", err, "batch_size", len(batch))
	}
}

// ChargeEvent is a charge.success webhook reduced to what the state machine
// needs. Exactly one of ActionID and ArrearID is set, extracted from the
// charge metadata at the dispatcher boundary.
type ChargeEvent struct {
	ActionID          string
	ArrearID          string
	Reference         string
	AmountMinor       int64
	FeesMinor         int64
	AuthorizationCode string
	Channel           string
	PaidAt            time.Time
}

// TransferEvent is a transfer.success/failed/reversed webhook. The Reason
// carries the correlation identifier; ParseReason runs exactly once, at the
// dispatcher boundary, and the parsed result travels with the event.
type TransferEvent struct {
	Reference     string
	TransferCode  string
	RecipientCode string
	AmountMinor   int64
	Reason        string
	Parsed        ParsedReason
}

// SubscriptionEvent is a subscription.create webhook.
type SubscriptionEvent struct {
	SubscriptionCode string
	EmailToken       string
	PlanCode         string
	CardSignature    string
	NextPaymentDate  time.Time
}

// ChargeFailureEvent is a failed recurring charge (invoice.payment_failed).
// InvoiceReference identifies the failed cycle; a re-delivered webhook carries
// the same reference and must not raise a second arrear.
type ChargeFailureEvent struct {
	SubscriptionCode string
	InvoiceReference string
}
