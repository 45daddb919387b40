package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

// CreateBillWithActions persists a bill and its actions in one transaction.
// Either everything lands or nothing does.
func (s *SQLiteStore) CreateBillWithActions(ctx context.Context, bill *models.Bill, actions []*models.BillAction) error {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	ts := now()
	if bill.CreatedAt == 0 {
		bill.CreatedAt = ts
	}
	bill.UpdatedAt = ts

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bills (id, name, creator_id, creditor_id, currency, total_amount_due, interval, first_charge_date, deadline, is_discreet, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bill.ID, bill.Name, bill.CreatorID, bill.CreditorID, bill.Currency,
			bill.TotalAmountDue.String(), string(bill.Interval),
			bill.FirstChargeDate.Unix(), bill.Deadline.Unix(),
			bill.IsDiscreet, bill.CreatedAt, bill.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}

		for _, action := range actions {
			if action.ID == "" {
				action.ID = uuid.New().String()
			}
			action.BillID = bill.ID
			if action.CreatedAt == 0 {
				action.CreatedAt = ts
			}
			action.UpdatedAt = ts

			_, err := tx.ExecContext(ctx,
				`INSERT INTO bill_actions (id, bill_id, participant_id, unregistered_participant_id, contribution,
				    paystack_transaction_fee, paystack_transfer_fee, halver_fee, total_fee, total_payment_due,
				    status, paystack_plan_code, paystack_subscription_id, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				action.ID, action.BillID,
				nullable(action.ParticipantID), nullable(action.UnregisteredParticipantID),
				action.Contribution.String(),
				action.PaystackTransactionFee.String(), action.PaystackTransferFee.String(),
				action.HalverFee.String(), action.TotalFee.String(), action.TotalPaymentDue.String(),
				string(action.Status),
				nullable(action.PaystackPlanCode), nullable(action.PaystackSubscriptionID),
				action.CreatedAt, action.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert bill action: %w", err)
			}
		}
		return nil
	})
}

// GetBill retrieves a bill by ID.
func (s *SQLiteStore) GetBill(ctx context.Context, billID string) (*models.Bill, error) {
	bill := &models.Bill{}
	var total string
	var interval string
	var firstCharge, deadline int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, creator_id, creditor_id, currency, total_amount_due, interval, first_charge_date, deadline, is_discreet, created_at, updated_at
		 FROM bills WHERE id = ?`,
		billID,
	).Scan(&bill.ID, &bill.Name, &bill.CreatorID, &bill.CreditorID, &bill.Currency,
		&total, &interval, &firstCharge, &deadline, &bill.IsDiscreet, &bill.CreatedAt, &bill.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	if bill.TotalAmountDue, err = parseDecimal(total); err != nil {
		return nil, err
	}
	bill.Interval = models.RecurrenceInterval(interval)
	bill.FirstChargeDate = time.Unix(firstCharge, 0).UTC()
	bill.Deadline = time.Unix(deadline, 0).UTC()
	return bill, nil
}

// UpdateBillFirstChargeDate moves a bill's first-charge anchor. Used when a
// subscription starts after the original date has already passed.
func (s *SQLiteStore) UpdateBillFirstChargeDate(ctx context.Context, billID string, firstCharge time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE bills SET first_charge_date = ?, updated_at = ? WHERE id = ?",
		firstCharge.Unix(), now(), billID,
	)
	if err != nil {
		return fmt.Errorf("failed to update first charge date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", billID, storage.ErrNotFound)
	}
	return nil
}
