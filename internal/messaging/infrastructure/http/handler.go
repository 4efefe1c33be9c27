package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/archive-commodities/marketplace/internal/messaging/application"
	"github.com/archive-commodities/marketplace/internal/messaging/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/messages", h.send)
	r.Get("/listings/{id}/messages", h.byListing)
	r.Post("/listings/{id}/messages/read", h.markRead)
	r.Get("/conversations", h.conversations)
}

type sendReq struct {
	ListingID  int64  `json:"listingId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	var req sendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	m, err := h.service.Send(r.Context(), domain.Message{
		ListingID:  req.ListingID,
		SenderID:   uid,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	})
	if errors.Is(err, domain.ErrInvalidMessage) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) byListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	msgs, err := h.service.ByListing(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}
	if err := h.service.MarkRead(r.Context(), id, uid); err != nil {
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		http.Error(w, "login required", http.StatusUnauthorized)
		return
	}
	convs, err := h.service.Conversations(r.Context(), uid)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.log.Error("messaging request failed", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
