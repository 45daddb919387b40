package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Money columns are TEXT holding exact decimal strings; storing REAL would
// silently corrupt fee arithmetic.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    default_authorization_code TEXT,
    default_recipient_code TEXT,
    device_token TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS unregistered_participants (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bills (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    creator_id TEXT NOT NULL,
    creditor_id TEXT NOT NULL,
    currency TEXT NOT NULL DEFAULT 'NGN',
    total_amount_due TEXT NOT NULL,
    interval TEXT NOT NULL DEFAULT 'none',
    first_charge_date INTEGER NOT NULL DEFAULT 0,
    deadline INTEGER NOT NULL DEFAULT 0,
    is_discreet INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bill_actions (
    id TEXT PRIMARY KEY,
    bill_id TEXT NOT NULL,
    participant_id TEXT,
    unregistered_participant_id TEXT,
    contribution TEXT NOT NULL,
    paystack_transaction_fee TEXT NOT NULL,
    paystack_transfer_fee TEXT NOT NULL,
    halver_fee TEXT NOT NULL,
    total_fee TEXT NOT NULL,
    total_payment_due TEXT NOT NULL,
    status TEXT NOT NULL,
    paystack_plan_code TEXT,
    paystack_subscription_id TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE,
    CHECK ((participant_id IS NULL) != (unregistered_participant_id IS NULL))
);

CREATE TABLE IF NOT EXISTS bill_arrears (
    id TEXT PRIMARY KEY,
    bill_id TEXT NOT NULL,
    action_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    contribution TEXT NOT NULL,
    paystack_transaction_fee TEXT NOT NULL,
    paystack_transfer_fee TEXT NOT NULL,
    halver_fee TEXT NOT NULL,
    total_fee TEXT NOT NULL,
    total_payment_due TEXT NOT NULL,
    invoice_reference TEXT UNIQUE,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE,
    FOREIGN KEY (action_id) REFERENCES bill_actions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS bill_transactions (
    id TEXT PRIMARY KEY,
    bill_id TEXT NOT NULL,
    action_id TEXT NOT NULL,
    arrear_id TEXT,
    payer_id TEXT NOT NULL,
    receiver_id TEXT NOT NULL,
    contribution TEXT NOT NULL,
    total_payment TEXT NOT NULL,
    paystack_transaction_id TEXT NOT NULL,
    paystack_transfer_id TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (bill_id) REFERENCES bills(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS paystack_transactions (
    id TEXT PRIMARY KEY,
    action_id TEXT NOT NULL,
    arrear_id TEXT,
    reference TEXT NOT NULL UNIQUE,
    amount TEXT NOT NULL,
    fees TEXT NOT NULL,
    authorization_code TEXT NOT NULL DEFAULT '',
    channel TEXT NOT NULL DEFAULT '',
    paid_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paystack_transfers (
    id TEXT PRIMARY KEY,
    reference TEXT NOT NULL UNIQUE,
    transfer_code TEXT NOT NULL DEFAULT '',
    recipient_code TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    reason TEXT NOT NULL,
    outcome TEXT NOT NULL,
    type TEXT NOT NULL,
    action_id TEXT,
    arrear_id TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paystack_plans (
    id TEXT PRIMARY KEY,
    action_id TEXT NOT NULL,
    plan_code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    amount TEXT NOT NULL,
    interval TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paystack_subscriptions (
    id TEXT PRIMARY KEY,
    action_id TEXT NOT NULL,
    subscription_code TEXT NOT NULL UNIQUE,
    email_token TEXT NOT NULL DEFAULT '',
    plan_code TEXT NOT NULL DEFAULT '',
    card_signature TEXT NOT NULL DEFAULT '',
    next_payment_date INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bill_actions_bill_id ON bill_actions(bill_id);
CREATE INDEX IF NOT EXISTS idx_bill_arrears_action_id ON bill_arrears(action_id);
CREATE INDEX IF NOT EXISTS idx_bill_transactions_bill_id ON bill_transactions(bill_id);
CREATE INDEX IF NOT EXISTS idx_paystack_transactions_action_id ON paystack_transactions(action_id);
CREATE INDEX IF NOT EXISTS idx_paystack_subscriptions_action_id ON paystack_subscriptions(action_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
