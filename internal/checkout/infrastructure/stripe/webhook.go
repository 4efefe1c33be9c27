package stripe

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	stripelib "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
)

const maxWebhookBody = 1 << 16

type Fulfiller interface {
	Fulfill(ctx context.Context, sessionID string) (domain.Sale, error)
}

// DedupStore answers whether a delivery key was seen before. Implemented by
// pkg/idempotency; this dedup only trims provider redeliveries, the sales
// table's unique session id remains the correctness mechanism.
type DedupStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	EventKey(provider, eventID string) string
}

// VerifyFunc checks the provider signature and parses the event. Injectable
// so handler tests can bypass real signatures.
type VerifyFunc func(payload []byte, sigHeader string) (stripelib.Event, error)

func Verifier(secret string) VerifyFunc {
	return func(payload []byte, sigHeader string) (stripelib.Event, error) {
		return webhook.ConstructEvent(payload, sigHeader, secret)
	}
}

type WebhookHandler struct {
	log       *slog.Logger
	verify    VerifyFunc
	fulfiller Fulfiller
	dedup     DedupStore
}

func NewWebhookHandler(log *slog.Logger, verify VerifyFunc, fulfiller Fulfiller, dedup DedupStore) *WebhookHandler {
	return &WebhookHandler{log: log, verify: verify, fulfiller: fulfiller, dedup: dedup}
}

// ServeHTTP acknowledges every verified event with 200, including ones whose
// fulfillment failed: re-delivering a session that cannot be fulfilled will
// never succeed, and non-2xx responses only invite provider retry storms.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Error("webhook signature verification failed", "err", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if event.Type == "checkout.session.completed" {
		h.handleCompleted(r.Context(), event)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCompleted(ctx context.Context, event stripelib.Event) {
	if h.dedup != nil {
		seen, err := h.dedup.Seen(ctx, h.dedup.EventKey("stripe", event.ID))
		if err != nil {
			h.log.Error("webhook dedup check failed", "event_id", event.ID, "err", err)
		} else if seen {
			h.log.Info("duplicate webhook event skipped", "event_id", event.ID)
			return
		}
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil || obj.ID == "" {
		h.log.Error("webhook event without session id", "event_id", event.ID)
		return
	}

	sale, err := h.fulfiller.Fulfill(ctx, obj.ID)
	if err != nil {
		h.log.Info("webhook fulfillment skipped", "session_id", obj.ID, "kind", domain.ErrorKind(err), "err", err)
		return
	}
	h.log.Info("webhook fulfilled checkout session", "session_id", obj.ID, "sale_id", sale.ID)
}
