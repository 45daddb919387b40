package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

// isUniqueViolation reports whether the driver error is a UNIQUE constraint
// failure. modernc.org/sqlite exposes no typed error for this, only the
// message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// insertPaystackTransaction writes a charge mirror. A duplicate gateway
// reference maps to ErrDuplicateSettlement: the webhook was delivered before.
func insertPaystackTransaction(ctx context.Context, q execer, txn *models.PaystackTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = now()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO paystack_transactions (id, action_id, arrear_id, reference, amount, fees, authorization_code, channel, paid_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.ActionID, nullable(txn.ArrearID), txn.Reference,
		txn.Amount.String(), txn.Fees.String(), txn.AuthorizationCode, txn.Channel,
		txn.PaidAt.Unix(), txn.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("charge reference %s: %w", txn.Reference, storage.ErrDuplicateSettlement)
	}
	if err != nil {
		return fmt.Errorf("failed to insert paystack transaction: %w", err)
	}
	return nil
}

// insertPaystackTransfer writes a transfer mirror. A duplicate gateway
// reference maps to ErrDuplicateSettlement.
func insertPaystackTransfer(ctx context.Context, q execer, transfer *models.PaystackTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}
	if transfer.CreatedAt == 0 {
		transfer.CreatedAt = now()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO paystack_transfers (id, reference, transfer_code, recipient_code, amount, reason, outcome, type, action_id, arrear_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID, transfer.Reference, transfer.TransferCode, transfer.RecipientCode,
		transfer.Amount.String(), transfer.Reason, string(transfer.Outcome), string(transfer.Type),
		nullable(transfer.ActionID), nullable(transfer.ArrearID), transfer.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("transfer reference %s: %w", transfer.Reference, storage.ErrDuplicateSettlement)
	}
	if err != nil {
		return fmt.Errorf("failed to insert paystack transfer: %w", err)
	}
	return nil
}

// CreatePaystackTransfer records a transfer mirror with no entity side effects.
func (s *SQLiteStore) CreatePaystackTransfer(ctx context.Context, transfer *models.PaystackTransfer) error {
	return insertPaystackTransfer(ctx, s.db, transfer)
}

// LatestPaystackTransactionForAction returns the most recent charge mirror
// for an action.
func (s *SQLiteStore) LatestPaystackTransactionForAction(ctx context.Context, actionID string) (*models.PaystackTransaction, error) {
	txn := &models.PaystackTransaction{}
	var arrearID sql.NullString
	var amount, fees string
	var paidAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, action_id, arrear_id, reference, amount, fees, authorization_code, channel, paid_at, created_at
		 FROM paystack_transactions WHERE action_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		actionID,
	).Scan(&txn.ID, &txn.ActionID, &arrearID, &txn.Reference, &amount, &fees,
		&txn.AuthorizationCode, &txn.Channel, &paidAt, &txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("charge for action %s: %w", actionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paystack transaction: %w", err)
	}

	txn.ArrearID = arrearID.String
	txn.PaidAt = time.Unix(paidAt, 0).UTC()
	if txn.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if txn.Fees, err = parseDecimal(fees); err != nil {
		return nil, err
	}
	return txn, nil
}

// CreatePaystackPlan records a gateway plan mirror.
func (s *SQLiteStore) CreatePaystackPlan(ctx context.Context, plan *models.PaystackPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt == 0 {
		plan.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO paystack_plans (id, action_id, plan_code, name, amount, interval, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		plan.ID, plan.ActionID, plan.PlanCode, plan.Name, plan.Amount.String(), string(plan.Interval), plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert paystack plan: %w", err)
	}
	return nil
}

// CreatePaystackSubscription writes the subscription mirror, links it to its
// action and moves the action to ongoing, atomically.
func (s *SQLiteStore) CreatePaystackSubscription(ctx context.Context, sub *models.PaystackSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt == 0 {
		sub.CreatedAt = now()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO paystack_subscriptions (id, action_id, subscription_code, email_token, plan_code, card_signature, next_payment_date, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.ID, sub.ActionID, sub.SubscriptionCode, sub.EmailToken, sub.PlanCode,
			sub.CardSignature, sub.NextPaymentDate.Unix(), sub.Active, sub.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("subscription %s: %w", sub.SubscriptionCode, storage.ErrDuplicateSettlement)
		}
		if err != nil {
			return fmt.Errorf("failed to insert paystack subscription: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE bill_actions SET paystack_subscription_id = ?, updated_at = ? WHERE id = ?",
			sub.ID, now(), sub.ActionID,
		)
		if err != nil {
			return fmt.Errorf("failed to link subscription to action: %w", err)
		}

		return updateActionStatus(ctx, tx, sub.ActionID, models.StatusOngoing, nil)
	})
}

func scanSubscription(row rowScanner) (*models.PaystackSubscription, error) {
	sub := &models.PaystackSubscription{}
	var nextPayment int64

	err := row.Scan(&sub.ID, &sub.ActionID, &sub.SubscriptionCode, &sub.EmailToken,
		&sub.PlanCode, &sub.CardSignature, &nextPayment, &sub.Active, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.NextPaymentDate = time.Unix(nextPayment, 0).UTC()
	return sub, nil
}

const subscriptionColumns = "id, action_id, subscription_code, email_token, plan_code, card_signature, next_payment_date, active, created_at"

// GetSubscriptionForAction returns the active subscription linked to an action.
func (s *SQLiteStore) GetSubscriptionForAction(ctx context.Context, actionID string) (*models.PaystackSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM paystack_subscriptions WHERE action_id = ? AND active = 1 ORDER BY created_at DESC LIMIT 1",
		actionID)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription for action %s: %w", actionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// GetSubscriptionByCode returns a subscription by its gateway code.
func (s *SQLiteStore) GetSubscriptionByCode(ctx context.Context, code string) (*models.PaystackSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM paystack_subscriptions WHERE subscription_code = ?", code)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription %s: %w", code, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by code: %w", err)
	}
	return sub, nil
}

// OldestActiveSubscriptionForBill returns the earliest-created active
// subscription among a bill's actions. Sibling actions align their
// subscription start dates to its next payment date.
func (s *SQLiteStore) OldestActiveSubscriptionForBill(ctx context.Context, billID string) (*models.PaystackSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.action_id, s.subscription_code, s.email_token, s.plan_code, s.card_signature, s.next_payment_date, s.active, s.created_at
		 FROM paystack_subscriptions s
		 JOIN bill_actions a ON a.id = s.action_id
		 WHERE a.bill_id = ? AND s.active = 1
		 ORDER BY s.created_at, s.id LIMIT 1`,
		billID)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("subscription for bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill subscription: %w", err)
	}
	return sub, nil
}

// MarkSubscriptionInactive flags a subscription as disabled.
func (s *SQLiteStore) MarkSubscriptionInactive(ctx context.Context, subscriptionID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE paystack_subscriptions SET active = 0 WHERE id = ?", subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %s: %w", subscriptionID, storage.ErrNotFound)
	}
	return nil
}
