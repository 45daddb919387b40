package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PushTransport delivers batches to an Expo-compatible push endpoint.
type PushTransport struct {
	endpoint string
	httpc    *http.Client
}

// NewPushTransport creates a transport for the given push endpoint.
func NewPushTransport(endpoint string) *PushTransport {
	return &PushTransport{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 15 * time.Second},
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type pushReceipt struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

// Deliver sends the whole batch in one request and classifies provider
// failures into the package's sentinel errors.
func (t *PushTransport) Deliver(ctx context.Context, batch []Notification) error {
	messages := make([]pushMessage, len(batch))
	for i, n := range batch {
		messages[i] = pushMessage{To: n.RecipientToken, Title: n.Title, Body: n.Body, Data: n.Metadata}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: provider returned 400", ErrMalformedPayload)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("push provider unavailable: http %d", resp.StatusCode)
	}

	var result struct {
		Data []pushReceipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode push response: %w", err)
	}
	for _, receipt := range result.Data {
		if receipt.Details.Error == "DeviceNotRegistered" {
			return ErrDeviceNotRegistered
		}
	}
	return nil
}
