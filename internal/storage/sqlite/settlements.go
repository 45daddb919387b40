package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

// RecordActionCharge writes the charge mirror and moves the action in one
// transaction. A replayed charge.success aborts on the unique reference
// before any status change.
func (s *SQLiteStore) RecordActionCharge(ctx context.Context, txn *models.PaystackTransaction, to models.ActionStatus, from ...models.ActionStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return updateActionStatus(ctx, tx, txn.ActionID, to, from)
	})
}

// RecordArrearCharge is RecordActionCharge for an arrear make-up payment.
func (s *SQLiteStore) RecordArrearCharge(ctx context.Context, txn *models.PaystackTransaction, to models.ArrearStatus, from ...models.ArrearStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransaction(ctx, tx, txn); err != nil {
			return err
		}
		return updateArrearStatus(ctx, tx, txn.ArrearID, to, from)
	})
}

// insertBillTransaction writes one immutable ledger row.
func insertBillTransaction(ctx context.Context, q execer, entry *models.BillTransaction) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = now()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO bill_transactions (id, bill_id, action_id, arrear_id, payer_id, receiver_id, contribution, total_payment, paystack_transaction_id, paystack_transfer_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BillID, entry.ActionID, nullable(entry.ArrearID),
		entry.PayerID, entry.ReceiverID,
		entry.Contribution.String(), entry.TotalPayment.String(),
		entry.PaystackTransactionID, entry.PaystackTransferID, entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("ledger entry for transfer %s: %w", entry.PaystackTransferID, storage.ErrDuplicateSettlement)
	}
	if err != nil {
		return fmt.Errorf("failed to insert bill transaction: %w", err)
	}
	return nil
}

// FinalizeActionSettlement records the successful transfer, writes the ledger
// entry and settles the action, all in one transaction. The transfer
// reference's uniqueness makes the whole finalization idempotent: a replayed
// webhook rolls back here with ErrDuplicateSettlement and the ledger stays
// single-entry.
func (s *SQLiteStore) FinalizeActionSettlement(ctx context.Context, transfer *models.PaystackTransfer, entry *models.BillTransaction, to models.ActionStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		entry.PaystackTransferID = transfer.ID
		if err := insertBillTransaction(ctx, tx, entry); err != nil {
			return err
		}
		return updateActionStatus(ctx, tx, entry.ActionID, to, nil)
	})
}

// FinalizeArrearSettlement is FinalizeActionSettlement for an arrear.
func (s *SQLiteStore) FinalizeArrearSettlement(ctx context.Context, transfer *models.PaystackTransfer, entry *models.BillTransaction, to models.ArrearStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		entry.PaystackTransferID = transfer.ID
		if err := insertBillTransaction(ctx, tx, entry); err != nil {
			return err
		}
		return updateArrearStatus(ctx, tx, entry.ArrearID, to, nil)
	})
}

// RecordActionTransferOutcome records a failed or reversed transfer and moves
// the action accordingly. The mirror row is kept for audit; no ledger entry
// is written because no money reached the creditor.
func (s *SQLiteStore) RecordActionTransferOutcome(ctx context.Context, transfer *models.PaystackTransfer, to models.ActionStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		return updateActionStatus(ctx, tx, transfer.ActionID, to, nil)
	})
}

// RecordArrearTransferOutcome is RecordActionTransferOutcome for an arrear.
func (s *SQLiteStore) RecordArrearTransferOutcome(ctx context.Context, transfer *models.PaystackTransfer, to models.ArrearStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertPaystackTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		return updateArrearStatus(ctx, tx, transfer.ArrearID, to, nil)
	})
}

// ListBillTransactions returns the ledger entries for a bill, newest first.
func (s *SQLiteStore) ListBillTransactions(ctx context.Context, billID string) ([]*models.BillTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bill_id, action_id, arrear_id, payer_id, receiver_id, contribution, total_payment, paystack_transaction_id, paystack_transfer_id, created_at
		 FROM bill_transactions WHERE bill_id = ? ORDER BY created_at DESC, id DESC`,
		billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bill transactions: %w", err)
	}
	defer rows.Close()

	var entries []*models.BillTransaction
	for rows.Next() {
		entry := &models.BillTransaction{}
		var arrearID sql.NullString
		var contribution, totalPayment string

		if err := rows.Scan(&entry.ID, &entry.BillID, &entry.ActionID, &arrearID,
			&entry.PayerID, &entry.ReceiverID, &contribution, &totalPayment,
			&entry.PaystackTransactionID, &entry.PaystackTransferID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill transaction: %w", err)
		}
		entry.ArrearID = arrearID.String
		if entry.Contribution, err = parseDecimal(contribution); err != nil {
			return nil, err
		}
		if entry.TotalPayment, err = parseDecimal(totalPayment); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bill transactions: %w", err)
	}
	return entries, nil
}
