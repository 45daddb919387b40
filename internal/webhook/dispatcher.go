// Package webhook receives gateway events and routes them to settlement
// transitions. The HTTP handler's only synchronous duty is signature
// verification; everything else runs as background tasks on a bounded worker
// pool, delivered at least once and in no guaranteed order.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/settlement"
)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "halver_webhook_events_received_total",
		Help: "Webhook events received, by gateway event type",
	}, []string{"event"})

	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "halver_webhook_events_processed_total",
		Help: "Webhook events whose settlement transition completed",
	}, []string{"event"})

	eventsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "halver_webhook_events_failed_total",
		Help: "Webhook events whose settlement transition returned an error",
	}, []string{"event"})
)

// Gateway event names. The set the dispatcher routes; everything else is
// logged and dropped.
const (
	eventChargeSuccess      = "charge.success"
	eventTransferSuccess    = "transfer.success"
	eventTransferFailed     = "transfer.failed"
	eventTransferReversed   = "transfer.reversed"
	eventSubscriptionCreate = "subscription.create"
	eventInvoiceFailed      = "invoice.payment_failed"
)

// Transitions is the slice of the settlement engine the dispatcher drives.
type Transitions interface {
	HandleChargeSuccess(ctx context.Context, ev settlement.ChargeEvent) error
	HandleTransferSuccess(ctx context.Context, ev settlement.TransferEvent) error
	HandleTransferFailure(ctx context.Context, ev settlement.TransferEvent, outcome models.TransferOutcome) error
	HandleSubscriptionCreated(ctx context.Context, ev settlement.SubscriptionEvent) error
	HandleChargeFailure(ctx context.Context, ev settlement.ChargeFailureEvent) error
}

type task struct {
	event string
	run   func(ctx context.Context) error
}

// Dispatcher fans webhook events out to a fixed pool of workers. Payload
// decoding and reason parsing happen synchronously in Dispatch so a malformed
// event is diagnosed with its payload in hand; only well-formed transitions
// are enqueued.
type Dispatcher struct {
	transitions Transitions
	tasks       chan task
	wg          sync.WaitGroup
	taskTimeout time.Duration
}

// NewDispatcher creates a dispatcher running transitions on workers
// goroutines. Close drains the queue before returning.
func NewDispatcher(transitions Transitions, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		transitions: transitions,
		tasks:       make(chan task, workers*8),
		taskTimeout: 30 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
		err := t.run(ctx)
		cancel()
		if err != nil {
			eventsFailed.WithLabelValues(t.event).Inc()
			slog.Error("Webhook transition failed", "event", t.event, "error", err)
			continue
		}
		eventsProcessed.WithLabelValues(t.event).Inc()
	}
}

// Close waits for queued transitions to finish.
func (d *Dispatcher) Close() {
	close(d.tasks)
	d.wg.Wait()
}

// Dispatch routes one gateway event. Unrecognized events are logged and
// ignored; malformed payloads and unparseable correlation identifiers are
// error-logged with the raw payload for manual reconciliation, never
// silently dropped. Dispatch itself never returns an error to the HTTP
// caller: by the time a webhook arrives the money has already moved.
func (d *Dispatcher) Dispatch(event string, payload []byte) {
	eventsReceived.WithLabelValues(event).Inc()

	var err error
	switch event {
	case eventChargeSuccess:
		err = d.dispatchChargeSuccess(payload)
	case eventTransferSuccess:
		err = d.dispatchTransfer(event, payload, models.TransferSuccessful)
	case eventTransferFailed:
		err = d.dispatchTransfer(event, payload, models.TransferFailed)
	case eventTransferReversed:
		err = d.dispatchTransfer(event, payload, models.TransferReversed)
	case eventSubscriptionCreate:
		err = d.dispatchSubscriptionCreate(payload)
	case eventInvoiceFailed:
		err = d.dispatchInvoiceFailed(payload)
	default:
		slog.Info("Ignoring unrecognized webhook event", "event", event)
		return
	}
	if err != nil {
		eventsFailed.WithLabelValues(event).Inc()
		slog.Error("Webhook event could not be routed",
			"event", event, "error", err, "payload", string(payload))
	}
}

// chargePayload is the charge.success data object, reduced to what the
// transition needs.
type chargePayload struct {
	Reference     string    `json:"reference"`
	Amount        int64     `json:"amount"` // minor units
	Fees          int64     `json:"fees"`
	Channel       string    `json:"channel"`
	PaidAt        time.Time `json:"paid_at"`
	Authorization struct {
		AuthorizationCode string `json:"authorization_code"`
	} `json:"authorization"`
	Metadata struct {
		ActionID       string `json:"action_id"`
		ArrearID       string `json:"arrear_id"`
		IsContribution bool   `json:"is_contribution"`
	} `json:"metadata"`
}

func (d *Dispatcher) dispatchChargeSuccess(payload []byte) error {
	var p chargePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding charge payload: %w", err)
	}
	if !p.Metadata.IsContribution {
		// Card-addition and other non-contribution charges are handled by
		// the account system, not the settlement flow.
		slog.Info("Ignoring non-contribution charge", "reference", p.Reference)
		return nil
	}
	if p.Metadata.ActionID == "" && p.Metadata.ArrearID == "" {
		return fmt.Errorf("charge %s carries no correlation metadata", p.Reference)
	}

	ev := settlement.ChargeEvent{
		ActionID:          p.Metadata.ActionID,
		ArrearID:          p.Metadata.ArrearID,
		Reference:         p.Reference,
		AmountMinor:       p.Amount,
		FeesMinor:         p.Fees,
		AuthorizationCode: p.Authorization.AuthorizationCode,
		Channel:           p.Channel,
		PaidAt:            p.PaidAt,
	}
	d.tasks <- task{event: eventChargeSuccess, run: func(ctx context.Context) error {
		return d.transitions.HandleChargeSuccess(ctx, ev)
	}}
	return nil
}

// transferPayload is the transfer.* data object.
type transferPayload struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
	Recipient    struct {
		RecipientCode string `json:"recipient_code"`
	} `json:"recipient"`
}

func (d *Dispatcher) dispatchTransfer(event string, payload []byte, outcome models.TransferOutcome) error {
	var p transferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding transfer payload: %w", err)
	}

	// The reason string is parsed exactly once, here; the parsed correlation
	// travels with the event.
	parsed, err := settlement.ParseReason(p.Reason)
	if err != nil {
		return fmt.Errorf("transfer %s reason %q: %w", p.Reference, p.Reason, err)
	}

	ev := settlement.TransferEvent{
		Reference:     p.Reference,
		TransferCode:  p.TransferCode,
		RecipientCode: p.Recipient.RecipientCode,
		AmountMinor:   p.Amount,
		Reason:        p.Reason,
		Parsed:        parsed,
	}
	d.tasks <- task{event: event, run: func(ctx context.Context) error {
		if outcome == models.TransferSuccessful {
			return d.transitions.HandleTransferSuccess(ctx, ev)
		}
		return d.transitions.HandleTransferFailure(ctx, ev, outcome)
	}}
	return nil
}

// subscriptionPayload is the subscription.create data object.
type subscriptionPayload struct {
	SubscriptionCode string    `json:"subscription_code"`
	EmailToken       string    `json:"email_token"`
	NextPaymentDate  time.Time `json:"next_payment_date"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
	} `json:"plan"`
	Authorization struct {
		Signature string `json:"signature"`
	} `json:"authorization"`
}

func (d *Dispatcher) dispatchSubscriptionCreate(payload []byte) error {
	var p subscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding subscription payload: %w", err)
	}
	if p.Plan.PlanCode == "" {
		return fmt.Errorf("subscription %s carries no plan code", p.SubscriptionCode)
	}

	ev := settlement.SubscriptionEvent{
		SubscriptionCode: p.SubscriptionCode,
		EmailToken:       p.EmailToken,
		PlanCode:         p.Plan.PlanCode,
		CardSignature:    p.Authorization.Signature,
		NextPaymentDate:  p.NextPaymentDate,
	}
	d.tasks <- task{event: eventSubscriptionCreate, run: func(ctx context.Context) error {
		return d.transitions.HandleSubscriptionCreated(ctx, ev)
	}}
	return nil
}

// invoicePayload is the invoice.payment_failed data object. The invoice code
// identifies the failed cycle across webhook re-deliveries.
type invoicePayload struct {
	InvoiceCode  string `json:"invoice_code"`
	Subscription struct {
		SubscriptionCode string `json:"subscription_code"`
	} `json:"subscription"`
}

func (d *Dispatcher) dispatchInvoiceFailed(payload []byte) error {
	var p invoicePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding invoice payload: %w", err)
	}
	if p.Subscription.SubscriptionCode == "" {
		return fmt.Errorf("failed invoice carries no subscription code")
	}

	ev := settlement.ChargeFailureEvent{
		SubscriptionCode: p.Subscription.SubscriptionCode,
		InvoiceReference: p.InvoiceCode,
	}
	d.tasks <- task{event: eventInvoiceFailed, run: func(ctx context.Context) error {
		return d.transitions.HandleChargeFailure(ctx, ev)
	}}
	return nil
}
