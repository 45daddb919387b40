package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

// CreateArrear persists the arrear snapshot and flags the parent action as
// last_payment_failed in the same transaction. The snapshot keeps the fee
// values at failure time even if the parent action's fees change later. A
// duplicate invoice reference maps to ErrDuplicateSettlement: the failure
// webhook was delivered before and the cycle is already snapshotted.
func (s *SQLiteStore) CreateArrear(ctx context.Context, arrear *models.BillArrear) error {
	if arrear.ID == "" {
		arrear.ID = uuid.New().String()
	}
	ts := now()
	if arrear.CreatedAt == 0 {
		arrear.CreatedAt = ts
	}
	arrear.UpdatedAt = ts
	if arrear.Status == "" {
		arrear.Status = models.ArrearOverdue
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bill_arrears (id, bill_id, action_id, participant_id, contribution,
			    paystack_transaction_fee, paystack_transfer_fee, halver_fee, total_fee, total_payment_due,
			    invoice_reference, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			arrear.ID, arrear.BillID, arrear.ActionID, arrear.ParticipantID,
			arrear.Contribution.String(),
			arrear.PaystackTransactionFee.String(), arrear.PaystackTransferFee.String(),
			arrear.HalverFee.String(), arrear.TotalFee.String(), arrear.TotalPaymentDue.String(),
			nullable(arrear.InvoiceReference), string(arrear.Status), arrear.CreatedAt, arrear.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice reference %s: %w", arrear.InvoiceReference, storage.ErrDuplicateSettlement)
		}
		if err != nil {
			return fmt.Errorf("failed to insert arrear: %w", err)
		}

		return updateActionStatus(ctx, tx, arrear.ActionID, models.StatusLastPaymentFailed, nil)
	})
}

// GetArrear retrieves an arrear by ID.
func (s *SQLiteStore) GetArrear(ctx context.Context, arrearID string) (*models.BillArrear, error) {
	arrear := &models.BillArrear{}
	var contribution, txFee, trFee, halverFee, totalFee, totalDue, status string
	var invoiceRef sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, bill_id, action_id, participant_id, contribution,
		    paystack_transaction_fee, paystack_transfer_fee, halver_fee, total_fee, total_payment_due,
		    invoice_reference, status, created_at, updated_at
		 FROM bill_arrears WHERE id = ?`,
		arrearID,
	).Scan(&arrear.ID, &arrear.BillID, &arrear.ActionID, &arrear.ParticipantID, &contribution,
		&txFee, &trFee, &halverFee, &totalFee, &totalDue,
		&invoiceRef, &status, &arrear.CreatedAt, &arrear.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("arrear %s: %w", arrearID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get arrear: %w", err)
	}

	arrear.InvoiceReference = invoiceRef.String
	arrear.Status = models.ArrearStatus(status)
	if arrear.Contribution, err = parseDecimal(contribution); err != nil {
		return nil, err
	}
	if arrear.PaystackTransactionFee, err = parseDecimal(txFee); err != nil {
		return nil, err
	}
	if arrear.PaystackTransferFee, err = parseDecimal(trFee); err != nil {
		return nil, err
	}
	if arrear.HalverFee, err = parseDecimal(halverFee); err != nil {
		return nil, err
	}
	if arrear.TotalFee, err = parseDecimal(totalFee); err != nil {
		return nil, err
	}
	if arrear.TotalPaymentDue, err = parseDecimal(totalDue); err != nil {
		return nil, err
	}
	return arrear, nil
}

// updateArrearStatus is the compare-and-set core, usable inside transactions.
func updateArrearStatus(ctx context.Context, q execer, arrearID string, to models.ArrearStatus, from []models.ArrearStatus) error {
	query := "UPDATE bill_arrears SET status = ?, updated_at = ? WHERE id = ?"
	args := []interface{}{string(to), now(), arrearID}
	if len(from) > 0 {
		marks, fromArgs := statusPlaceholders(from)
		query += " AND status IN (" + marks + ")"
		args = append(args, fromArgs...)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update arrear status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("arrear %s -> %s: %w", arrearID, to, storage.ErrStaleStatus)
	}
	return nil
}

// UpdateArrearStatus moves an arrear to a new status, guarded by its current one.
func (s *SQLiteStore) UpdateArrearStatus(ctx context.Context, arrearID string, to models.ArrearStatus, from ...models.ArrearStatus) error {
	return updateArrearStatus(ctx, s.db, arrearID, to, from)
}
