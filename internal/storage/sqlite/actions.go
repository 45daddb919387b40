package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

const actionColumns = `id, bill_id, participant_id, unregistered_participant_id, contribution,
	paystack_transaction_fee, paystack_transfer_fee, halver_fee, total_fee, total_payment_due,
	status, paystack_plan_code, paystack_subscription_id, created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx, so status updates can run
// standalone or inside a larger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(row rowScanner) (*models.BillAction, error) {
	action := &models.BillAction{}
	var participantID, unregisteredID, planID, subscriptionID sql.NullString
	var contribution, txFee, trFee, halverFee, totalFee, totalDue string
	var status string

	err := row.Scan(&action.ID, &action.BillID, &participantID, &unregisteredID, &contribution,
		&txFee, &trFee, &halverFee, &totalFee, &totalDue,
		&status, &planID, &subscriptionID, &action.CreatedAt, &action.UpdatedAt)
	if err != nil {
		return nil, err
	}

	action.ParticipantID = participantID.String
	action.UnregisteredParticipantID = unregisteredID.String
	action.PaystackPlanCode = planID.String
	action.PaystackSubscriptionID = subscriptionID.String
	action.Status = models.ActionStatus(status)

	if action.Contribution, err = parseDecimal(contribution); err != nil {
		return nil, err
	}
	if action.PaystackTransactionFee, err = parseDecimal(txFee); err != nil {
		return nil, err
	}
	if action.PaystackTransferFee, err = parseDecimal(trFee); err != nil {
		return nil, err
	}
	if action.HalverFee, err = parseDecimal(halverFee); err != nil {
		return nil, err
	}
	if action.TotalFee, err = parseDecimal(totalFee); err != nil {
		return nil, err
	}
	if action.TotalPaymentDue, err = parseDecimal(totalDue); err != nil {
		return nil, err
	}
	return action, nil
}

// GetAction retrieves a single action by ID.
func (s *SQLiteStore) GetAction(ctx context.Context, actionID string) (*models.BillAction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+actionColumns+" FROM bill_actions WHERE id = ?", actionID)

	action, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action %s: %w", actionID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return action, nil
}

// ListBillActions returns all actions belonging to a bill.
func (s *SQLiteStore) ListBillActions(ctx context.Context, billID string) ([]*models.BillAction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM bill_actions WHERE bill_id = ? ORDER BY created_at, id", billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.BillAction
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return actions, nil
}

// updateActionStatus is the compare-and-set core shared by the standalone
// method and multi-entity transactions. An empty from list means
// unconditional.
func updateActionStatus(ctx context.Context, q execer, actionID string, to models.ActionStatus, from []models.ActionStatus) error {
	query := "UPDATE bill_actions SET status = ?, updated_at = ? WHERE id = ?"
	args := []interface{}{string(to), now(), actionID}
	if len(from) > 0 {
		marks, fromArgs := statusPlaceholders(from)
		query += " AND status IN (" + marks + ")"
		args = append(args, fromArgs...)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update action status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("action %s -> %s: %w", actionID, to, storage.ErrStaleStatus)
	}
	return nil
}

// UpdateActionStatus moves an action to a new status, guarded by its current one.
func (s *SQLiteStore) UpdateActionStatus(ctx context.Context, actionID string, to models.ActionStatus, from ...models.ActionStatus) error {
	return updateActionStatus(ctx, s.db, actionID, to, from)
}

// SetActionPlan attaches a gateway plan code to an action.
func (s *SQLiteStore) SetActionPlan(ctx context.Context, actionID, planCode string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bill_actions SET paystack_plan_code = ?, updated_at = ? WHERE id = ?",
		planCode, now(), actionID)
	if err != nil {
		return fmt.Errorf("failed to set action plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %s: %w", actionID, storage.ErrNotFound)
	}
	return nil
}

// GetActionByPlanCode resolves the action a gateway plan was created for.
// Plans are one-per-action, so the code is a unique key.
func (s *SQLiteStore) GetActionByPlanCode(ctx context.Context, planCode string) (*models.BillAction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+actionColumns+" FROM bill_actions WHERE paystack_plan_code = ?", planCode)

	action, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("action for plan %s: %w", planCode, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action by plan: %w", err)
	}
	return action, nil
}
