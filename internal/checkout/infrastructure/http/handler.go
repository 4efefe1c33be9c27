package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archive-commodities/marketplace/internal/checkout/domain"
)

type CheckoutService interface {
	CreateCheckout(ctx context.Context, listingID int64, buyerID string) (domain.Session, error)
	SalesByBuyer(ctx context.Context, buyerID string) ([]domain.Sale, error)
	SalesBySeller(ctx context.Context, sellerID string) ([]domain.Sale, error)
	MarkShipped(ctx context.Context, saleID int64, sellerID, trackingNumber string) (domain.Sale, error)
}

type Fulfiller interface {
	Fulfill(ctx context.Context, sessionID string) (domain.Sale, error)
}

type Handler struct {
	log            *slog.Logger
	service        CheckoutService
	fulfiller      Fulfiller
	publishableKey string
	tracer         trace.Tracer
}

func NewHandler(log *slog.Logger, service CheckoutService, fulfiller Fulfiller, publishableKey string) *Handler {
	return &Handler{
		log:            log,
		service:        service,
		fulfiller:      fulfiller,
		publishableKey: publishableKey,
		tracer:         otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/checkout", h.createCheckout)
	r.Post("/checkout/complete", h.completeCheckout)
	r.Get("/stripe/config", h.stripeConfig)
	r.Get("/transactions/mine", h.purchases)
	r.Get("/transactions/sales", h.sales)
	r.Post("/transactions/{id}/ship", h.markShipped)
}

type createCheckoutReq struct {
	ListingID int64 `json:"listingId"`
}

func (h *Handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckout")
	defer span.End()

	var req createCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}

	sess, err := h.service.CreateCheckout(ctx, req.ListingID, userID(r))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": sess.URL})
}

type completeCheckoutReq struct {
	SessionID string `json:"sessionId"`
	ListingID int64  `json:"listingId"`
}

func (h *Handler) completeCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CompleteCheckout")
	defer span.End()

	var req completeCheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing session id")
		return
	}

	sale, err := h.fulfiller.Fulfill(ctx, req.SessionID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	// A stale or tampered listing id from the client does not matter once a
	// sale exists; the committed sale is authoritative. Log and move on.
	if req.ListingID != 0 && sale.ListingID != req.ListingID {
		h.log.Warn("listing id mismatch on completed checkout",
			"session_id", req.SessionID, "got", req.ListingID, "committed", sale.ListingID)
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *Handler) stripeConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publishableKey": h.publishableKey})
}

func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}
	sales, err := h.service.SalesByBuyer(r.Context(), uid)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}
	sales, err := h.service.SalesBySeller(r.Context(), uid)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

type markShippedReq struct {
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "login required")
		return
	}
	saleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid sale id")
		return
	}
	var req markShippedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}
	sale, err := h.service.MarkShipped(r.Context(), saleID, uid, req.TrackingNumber)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// userID reads the identity header set by the auth layer in front of this
// service; empty means guest.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	if kind == "" {
		// Infrastructure failure, safe for the client to retry.
		h.log.Error("checkout request failed", "err", err)
		writeError(w, http.StatusBadGateway, "provider_unavailable", "try again later")
		return
	}
	writeError(w, statusForKind(err), kind, err.Error())
}

func statusForKind(err error) int {
	switch {
	case errors.Is(err, domain.ErrListingNotFound), errors.Is(err, domain.ErrSaleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySold):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotSeller):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": message})
}
