package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// envelope is the outer webhook body: the event name plus an event-specific
// data object.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler terminates the gateway's webhook calls. It verifies the
// x-paystack-signature HMAC over the raw body, enqueues the event and
// returns 200 immediately; the gateway retries non-2xx responses, so a
// slow transition must never hold the request open.
type Handler struct {
	secret     []byte
	dispatcher *Dispatcher
}

// NewHandler creates a webhook handler signing with the gateway secret key.
func NewHandler(secretKey string, dispatcher *Dispatcher) *Handler {
	return &Handler{secret: []byte(secretKey), dispatcher: dispatcher}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !h.validSignature(r.Header.Get("x-paystack-signature"), body) {
		slog.Warn("Webhook with invalid signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		slog.Error("Webhook body is not valid JSON", "error", err)
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	h.dispatcher.Dispatch(env.Event, env.Data)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) validSignature(signature string, body []byte) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
