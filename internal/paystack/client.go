// Package paystack is a thin client for the payment gateway's HTTP API.
//
// The client is constructed explicitly and passed to whoever needs gateway
// access; there is no package-level singleton and no shared mutable state
// beyond the http.Client's own pooling.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// APIError is a gateway-level failure: the HTTP exchange worked but the
// gateway declined the operation.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

// Client talks to the gateway. Safe for concurrent use.
type Client struct {
	baseURL    string
	secretKey  string
	httpc      *http.Client
	batchLimit int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests inject a
// httptest server transport this way).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithBatchLimit caps how many batch requests run concurrently.
func WithBatchLimit(n int) Option {
	return func(c *Client) { c.batchLimit = n }
}

// New creates a gateway client.
func New(baseURL, secretKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpc:      &http.Client{Timeout: 30 * time.Second},
		batchLimit: 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call performs one request and decodes the gateway envelope. A false status
// in the envelope is an error even on HTTP 200.
func (c *Client) call(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	envelope := &Response{}
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if !envelope.Status {
		return envelope, &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}
	return envelope, nil
}

// decodeData unpacks the envelope's data into out.
func decodeData(envelope *Response, out interface{}) error {
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode gateway data: %w", err)
	}
	return nil
}

// ChargeAuthorization charges a stored card authorization. The metadata in
// the request comes back verbatim on the charge.success webhook.
func (c *Client) ChargeAuthorization(ctx context.Context, req ChargeRequest) (*Response, error) {
	return c.call(ctx, http.MethodPost, "/transaction/charge_authorization", req)
}

// CreatePlan creates one payment plan.
func (c *Client) CreatePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	envelope, err := c.call(ctx, http.MethodPost, "/plan", req)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if err := decodeData(envelope, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// PlanResult maps one batch plan creation back to its request index.
type PlanResult struct {
	Index int
	Plan  *Plan
	Err   error
}

// CreatePlans creates many plans concurrently. Results come back indexed so
// completion order does not matter; every request gets exactly one result.
func (c *Client) CreatePlans(ctx context.Context, reqs []PlanRequest) []PlanResult {
	results := make([]PlanResult, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			plan, err := c.CreatePlan(ctx, req)
			results[i] = PlanResult{Index: i, Plan: plan, Err: err}
			return nil // individual failures are reported per-index, not aborted
		})
	}
	g.Wait()
	return results
}

// CreateSubscription subscribes a customer to a plan.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	envelope, err := c.call(ctx, http.MethodPost, "/subscription", req)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{}
	if err := decodeData(envelope, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// FetchSubscription fetches a subscription by code.
func (c *Client) FetchSubscription(ctx context.Context, code string) (*Subscription, error) {
	envelope, err := c.call(ctx, http.MethodGet, "/subscription/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{}
	if err := decodeData(envelope, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// DisableSubscription disables one subscription.
func (c *Client) DisableSubscription(ctx context.Context, key SubscriptionKey) error {
	_, err := c.call(ctx, http.MethodPost, "/subscription/disable", key)
	return err
}

// DisableResult maps one batch disable back to its request index.
type DisableResult struct {
	Index int
	Err   error
}

// DisableSubscriptions disables many subscriptions concurrently, reporting
// per-index outcomes. Callers decide what a partial failure means.
func (c *Client) DisableSubscriptions(ctx context.Context, keys []SubscriptionKey) []DisableResult {
	results := make([]DisableResult, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			results[i] = DisableResult{Index: i, Err: c.DisableSubscription(ctx, key)}
			return nil
		})
	}
	g.Wait()
	return results
}

// InitiateTransfer starts a transfer to a recipient. The reason string is
// passed through byte-for-byte; it carries the correlation identifier the
// webhook hop parses back out.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.Source == "" {
		req.Source = "balance"
	}
	envelope, err := c.call(ctx, http.MethodPost, "/transfer", req)
	if err != nil {
		return nil, err
	}
	transfer := &Transfer{}
	if err := decodeData(envelope, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// ListBanks returns the supported banks.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	envelope, err := c.call(ctx, http.MethodGet, "/bank", nil)
	if err != nil {
		return nil, err
	}
	var banks []Bank
	if err := decodeData(envelope, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

// ResolveAccount resolves an account number against a bank code.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	path := fmt.Sprintf("/bank/resolve?account_number=%s&bank_code=%s",
		url.QueryEscape(accountNumber), url.QueryEscape(bankCode))
	envelope, err := c.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	account := &ResolvedAccount{}
	if err := decodeData(envelope, account); err != nil {
		return nil, err
	}
	return account, nil
}

// CreateTransferRecipient registers a payout destination.
func (c *Client) CreateTransferRecipient(ctx context.Context, req RecipientRequest) (*Recipient, error) {
	envelope, err := c.call(ctx, http.MethodPost, "/transferrecipient", req)
	if err != nil {
		return nil, err
	}
	recipient := &Recipient{}
	if err := decodeData(envelope, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// FetchTransferRecipient fetches a recipient by code.
func (c *Client) FetchTransferRecipient(ctx context.Context, code string) (*Recipient, error) {
	envelope, err := c.call(ctx, http.MethodGet, "/transferrecipient/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, err
	}
	recipient := &Recipient{}
	if err := decodeData(envelope, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// DeleteTransferRecipient removes a recipient.
func (c *Client) DeleteTransferRecipient(ctx context.Context, code string) error {
	_, err := c.call(ctx, http.MethodDelete, "/transferrecipient/"+url.PathEscape(code), nil)
	return err
}
