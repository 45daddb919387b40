// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/halverapp/halver-backend/internal/models"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrStaleStatus is returned when a compare-and-set status update matched
	// no row: the entity moved on since the caller last read it. Webhook
	// handlers treat this as a replay or an out-of-order delivery.
	ErrStaleStatus = errors.New("storage: status precondition failed")

	// ErrDuplicateSettlement is returned when a settlement finalization has
	// already been recorded for the same gateway transfer reference. Replayed
	// webhooks land here instead of writing a second ledger row.
	ErrDuplicateSettlement = errors.New("storage: settlement already recorded")
)

// Store defines the persistence operations the settlement flow needs.
// Methods that touch more than one entity (bill + actions, charge + status,
// transfer + ledger + status) are single atomic transactions in every
// implementation; a partial write is data corruption, not a recoverable state.
type Store interface {
	// CreateUser persists a user. Seeding and test surface; user accounts are
	// otherwise managed outside this system.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// CreateUnregisteredParticipant persists a phone-only participant stub.
	CreateUnregisteredParticipant(ctx context.Context, p *models.UnregisteredParticipant) error

	// CreateBillWithActions atomically persists a bill and one action per
	// participant. IDs and timestamps are populated by the store.
	CreateBillWithActions(ctx context.Context, bill *models.Bill, actions []*models.BillAction) error

	// GetBill retrieves a bill by ID.
	GetBill(ctx context.Context, billID string) (*models.Bill, error)

	// UpdateBillFirstChargeDate moves a bill's first-charge anchor to a new
	// date.
	UpdateBillFirstChargeDate(ctx context.Context, billID string, firstCharge time.Time) error

	// GetAction retrieves a single action by ID.
	GetAction(ctx context.Context, actionID string) (*models.BillAction, error)

	// ListBillActions returns all actions belonging to a bill.
	ListBillActions(ctx context.Context, billID string) ([]*models.BillAction, error)

	// UpdateActionStatus moves an action to a new status if and only if its
	// current status is one of from. Returns ErrStaleStatus otherwise.
	UpdateActionStatus(ctx context.Context, actionID string, to models.ActionStatus, from ...models.ActionStatus) error

	// SetActionPlan attaches a gateway plan code to an action.
	SetActionPlan(ctx context.Context, actionID, planCode string) error

	// GetActionByPlanCode resolves the action a gateway plan was created for.
	GetActionByPlanCode(ctx context.Context, planCode string) (*models.BillAction, error)

	// RecordActionCharge atomically writes a gateway charge mirror and moves
	// the action's status (compare-and-set against from).
	RecordActionCharge(ctx context.Context, txn *models.PaystackTransaction, to models.ActionStatus, from ...models.ActionStatus) error

	// RecordArrearCharge is RecordActionCharge for an arrear make-up payment.
	RecordArrearCharge(ctx context.Context, txn *models.PaystackTransaction, to models.ArrearStatus, from ...models.ArrearStatus) error

	// FinalizeActionSettlement atomically records the transfer mirror, writes
	// the ledger entry and moves the action to its settled status. Returns
	// ErrDuplicateSettlement when the transfer reference has been finalized
	// before; nothing is written in that case.
	FinalizeActionSettlement(ctx context.Context, transfer *models.PaystackTransfer, entry *models.BillTransaction, to models.ActionStatus) error

	// FinalizeArrearSettlement is FinalizeActionSettlement for an arrear.
	FinalizeArrearSettlement(ctx context.Context, transfer *models.PaystackTransfer, entry *models.BillTransaction, to models.ArrearStatus) error

	// RecordActionTransferOutcome atomically records a failed or reversed
	// transfer mirror and moves the action accordingly. No ledger entry is
	// written.
	RecordActionTransferOutcome(ctx context.Context, transfer *models.PaystackTransfer, to models.ActionStatus) error

	// RecordArrearTransferOutcome is RecordActionTransferOutcome for an arrear.
	RecordArrearTransferOutcome(ctx context.Context, transfer *models.PaystackTransfer, to models.ArrearStatus) error

	// CreatePaystackTransfer records a transfer mirror that touches no local
	// entity (card addition refunds).
	CreatePaystackTransfer(ctx context.Context, transfer *models.PaystackTransfer) error

	// CreateArrear atomically persists an arrear snapshot and flags its parent
	// action as last_payment_failed.
	CreateArrear(ctx context.Context, arrear *models.BillArrear) error

	// GetArrear retrieves an arrear by ID.
	GetArrear(ctx context.Context, arrearID string) (*models.BillArrear, error)

	// UpdateArrearStatus moves an arrear to a new status if its current
	// status is one of from. Returns ErrStaleStatus otherwise.
	UpdateArrearStatus(ctx context.Context, arrearID string, to models.ArrearStatus, from ...models.ArrearStatus) error

	// LatestPaystackTransactionForAction returns the most recent charge
	// mirror recorded for an action, or ErrNotFound.
	LatestPaystackTransactionForAction(ctx context.Context, actionID string) (*models.PaystackTransaction, error)

	// CreatePaystackPlan records a gateway plan mirror.
	CreatePaystackPlan(ctx context.Context, plan *models.PaystackPlan) error

	// CreatePaystackSubscription atomically records a subscription mirror,
	// links it to its action and moves the action to ongoing.
	CreatePaystackSubscription(ctx context.Context, sub *models.PaystackSubscription) error

	// GetSubscriptionForAction returns the active subscription linked to an
	// action, or ErrNotFound.
	GetSubscriptionForAction(ctx context.Context, actionID string) (*models.PaystackSubscription, error)

	// GetSubscriptionByCode returns a subscription by its gateway code, or
	// ErrNotFound. Recurring-charge-failure webhooks identify the failing
	// subscription this way.
	GetSubscriptionByCode(ctx context.Context, code string) (*models.PaystackSubscription, error)

	// OldestActiveSubscriptionForBill returns the earliest-created active
	// subscription among a bill's actions, or ErrNotFound. Used to align
	// sibling start dates.
	OldestActiveSubscriptionForBill(ctx context.Context, billID string) (*models.PaystackSubscription, error)

	// MarkSubscriptionInactive flags a subscription as disabled.
	MarkSubscriptionInactive(ctx context.Context, subscriptionID string) error

	// ListBillTransactions returns the ledger entries for a bill, newest first.
	ListBillTransactions(ctx context.Context, billID string) ([]*models.BillTransaction, error)

	// Close releases any resources held by the store.
	Close() error
}
