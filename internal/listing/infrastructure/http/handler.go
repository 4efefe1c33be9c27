package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/archive-commodities/marketplace/internal/listing/application"
	"github.com/archive-commodities/marketplace/internal/listing/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("listing-http"),
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/listings", h.list)
	r.Get("/listings/search", h.search)
	r.Get("/listings/{id}", h.get)
	r.Post("/listings", h.create)
	r.Get("/sellers/{id}/listings", h.bySeller)
	r.Post("/listings/{id}/favorite", h.addFavorite)
	r.Delete("/listings/{id}/favorite", h.removeFavorite)
	r.Get("/listings/{id}/likes", h.likes)
	r.Get("/favorites", h.favorites)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Active(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	l, err := h.service.Get(r.Context(), id)
	if errors.Is(err, domain.ErrListingNotFound) {
		http.Error(w, "listing not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type createListingReq struct {
	Title                           string `json:"title"`
	Description                     string `json:"description"`
	Brand                           string `json:"brand"`
	Condition                       string `json:"condition"`
	Price                           int64  `json:"price"`
	ImageURL                        string `json:"imageUrl"`
	PackageSize                     string `json:"packageSize"`
	ShippingPaidBy                  string `json:"shippingPaidBy"`
	Weight                          int    `json:"weight"`
	InternationalShippingPriceCents *int64 `json:"internationalShippingPrice"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateListing")
	defer span.End()

	sellerID := r.Header.Get("X-User-ID")
	if sellerID == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	var req createListingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	l, err := h.service.Create(ctx, application.CreateListingInput{
		SellerID:                        sellerID,
		Title:                           req.Title,
		Description:                     req.Description,
		Brand:                           req.Brand,
		Condition:                       domain.Condition(req.Condition),
		PriceCents:                      req.Price,
		ImageURL:                        req.ImageURL,
		PackageSize:                     domain.PackageSize(req.PackageSize),
		ShippingPaidBy:                  domain.ShippingPolicy(req.ShippingPaidBy),
		WeightOunces:                    req.Weight,
		InternationalShippingPriceCents: req.InternationalShippingPriceCents,
	})
	if errors.Is(err, application.ErrInvalidListing) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) bySeller(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.BySeller(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	if err := h.service.AddFavorite(r.Context(), uid, id); err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			http.Error(w, "listing not found", http.StatusNotFound)
			return
		}
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	if err := h.service.RemoveFavorite(r.Context(), uid, id); err != nil {
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) likes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	n, err := h.service.LikeCount(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) favorites(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	ids, err := h.service.Favorites(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.log.Error("listing request failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
