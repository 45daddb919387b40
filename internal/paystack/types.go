package paystack

import "encoding/json"

// Response is the gateway's uniform envelope: every endpoint answers with
// {status, message, data}.
type Response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ChargeMetadata rides along with a charge request and comes back verbatim in
// the charge.success webhook. It is the only correlation channel between the
// charge and the entities it pays for.
type ChargeMetadata struct {
	ActionID       string `json:"action_id,omitempty"`
	ArrearID       string `json:"arrear_id,omitempty"`
	BillID         string `json:"bill_id,omitempty"`
	ParticipantID  string `json:"participant_id,omitempty"`
	CreditorID     string `json:"creditor_id,omitempty"`
	IsContribution bool   `json:"is_contribution"`
}

// ChargeRequest charges a stored card authorization.
type ChargeRequest struct {
	Email             string         `json:"email"`
	AuthorizationCode string         `json:"authorization_code"`
	Amount            int64          `json:"amount"` // minor units
	Reference         string         `json:"reference,omitempty"`
	Metadata          ChargeMetadata `json:"metadata"`
}

// PlanRequest creates a payment plan for one recurring action.
type PlanRequest struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // minor units, per cycle
	Interval string `json:"interval"`
}

// Plan is the gateway's plan object.
type Plan struct {
	Name     string `json:"name"`
	PlanCode string `json:"plan_code"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
}

// SubscriptionRequest subscribes a customer's stored authorization to a plan.
type SubscriptionRequest struct {
	Customer      string `json:"customer"` // email
	Plan          string `json:"plan"`     // plan code
	Authorization string `json:"authorization,omitempty"`
	StartDate     string `json:"start_date,omitempty"` // RFC 3339
}

// Subscription is the gateway's subscription object.
type Subscription struct {
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
	Status           string `json:"status"`
	NextPaymentDate  string `json:"next_payment_date"`
}

// SubscriptionKey identifies a subscription for disable calls.
type SubscriptionKey struct {
	Code       string `json:"code"`
	EmailToken string `json:"token"`
}

// TransferRequest moves money to a transfer recipient. The reason string is
// the cross-hop correlation carrier and must be passed through unmodified.
type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"` // minor units
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	Reference string `json:"reference,omitempty"`
}

// Transfer is the gateway's transfer object.
type Transfer struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Amount       int64  `json:"amount"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
}

// RecipientRequest registers a bank account as a transfer recipient.
type RecipientRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Currency      string `json:"currency"`
}

// Recipient is the gateway's transfer recipient object.
type Recipient struct {
	RecipientCode string `json:"recipient_code"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Active        bool   `json:"active"`
}

// Bank is one entry from the bank list endpoint.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// ResolvedAccount is the account-resolution result.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}
