package shipping

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	listingdomain "github.com/archive-commodities/marketplace/internal/listing/domain"
)

type RateService interface {
	EstimatedCost(size listingdomain.PackageSize) int64
	Rates(ctx context.Context, to Address, size listingdomain.PackageSize) ([]Rate, error)
}

type Handler struct {
	log     *slog.Logger
	service RateService
}

func NewHandler(log *slog.Logger, service RateService) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/shipping/estimate", h.estimate)
	r.Post("/shipping/rates", h.rates)
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	size := listingdomain.PackageSize(r.URL.Query().Get("packageSize"))
	if !listingdomain.ValidPackageSize(size) {
		http.Error(w, "unknown package size", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cost": h.service.EstimatedCost(size)})
}

type ratesReq struct {
	Address     Address `json:"address"`
	PackageSize string  `json:"packageSize"`
}

func (h *Handler) rates(w http.ResponseWriter, r *http.Request) {
	var req ratesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	size := listingdomain.PackageSize(req.PackageSize)
	if !listingdomain.ValidPackageSize(size) {
		http.Error(w, "unknown package size", http.StatusBadRequest)
		return
	}
	rates, err := h.service.Rates(r.Context(), req.Address, size)
	if err != nil {
		h.log.Error("rate lookup failed", "err", err)
		http.Error(w, "rate lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
