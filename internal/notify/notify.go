// Package notify delivers push notifications with bounded retry. Delivery is
// best-effort: a settlement transition must never fail or block because a
// phone could not be reached.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrDeviceNotRegistered means the recipient token is permanently dead.
	// Retrying cannot help, and the failure is not worth surfacing.
	ErrDeviceNotRegistered = errors.New("notify: device no longer registered")

	// ErrMalformedPayload means the provider rejected the notification shape.
	// That is a programming error and is propagated for alerting.
	ErrMalformedPayload = errors.New("notify: malformed payload")
)

// Notification is one push message.
type Notification struct {
	RecipientToken string
	Title          string
	Body           string
	Metadata       map[string]string
}

// Transport is the delivery provider. Implementations send the whole batch
// in one call and classify failures with the sentinel errors above; anything
// else is treated as transient.
type Transport interface {
	Deliver(ctx context.Context, batch []Notification) error
}

// Service sends notification batches through a Transport with retry.
type Service struct {
	transport   Transport
	maxAttempts int
	baseDelay   time.Duration
}

// NewService creates a notification service. Retries 3 times with the delay
// doubling each attempt.
func NewService(transport Transport) *Service {
	return &Service{
		transport:   transport,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// Send delivers one logical event's notifications as a single batch.
// Transient transport errors are retried with exponential backoff; a dead
// device aborts quietly; a malformed payload propagates immediately.
func (s *Service) Send(ctx context.Context, batch []Notification) error {
	batch = withTokens(batch)
	if len(batch) == 0 {
		return nil
	}

	delay := s.baseDelay
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.transport.Deliver(ctx, batch)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDeviceNotRegistered) {
			slog.Info("Dropping notifications for unregistered device", "batch_size", len(batch))
			return nil
		}
		if errors.Is(err, ErrMalformedPayload) {
			return fmt.Errorf("notification batch rejected: %w", err)
		}

		lastErr = err
		slog.Warn("Notification delivery failed",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err,
		)
		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("notification delivery exhausted %d attempts: %w", s.maxAttempts, lastErr)
}

// withTokens drops notifications for recipients without a device token.
func withTokens(batch []Notification) []Notification {
	out := batch[:0]
	for _, n := range batch {
		if n.RecipientToken != "" {
			out = append(out, n)
		}
	}
	return out
}
