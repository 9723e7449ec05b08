package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/card-service/internal/middleware"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// request bodies above this size are rejected
const maxBodySize = 1 << 20

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the card API under r
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/", h.Root).Methods(http.MethodGet)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/cards", h.ListCards).Methods(http.MethodGet)
	api.HandleFunc("/cards", h.CreateCard).Methods(http.MethodPost)
	api.HandleFunc("/cards/duplicates", h.RemoveDuplicates).Methods(http.MethodDelete)
	api.HandleFunc("/cards/{id:[0-9]+}", h.GetCard).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id:[0-9]+}", h.UpdateCard).Methods(http.MethodPut)
	api.HandleFunc("/cards/{id:[0-9]+}", h.DeleteCard).Methods(http.MethodDelete)
	api.HandleFunc("/cards/{id:[0-9]+}/status", h.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/bin/{bin_number}", h.LookupBin).Methods(http.MethodGet)
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Error("Failed to write response")
	}
}

// writeError maps service errors onto status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Detail: "Card not found"})
	case errors.Is(err, service.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetRequestID(r.Context()),
		}).Error("Request failed")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
	}
}

// decodeBody reads a JSON request body into dst
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// cardID parses the {id} path variable; the route pattern guarantees digits
func cardID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: card id out of range", service.ErrNotFound)
	}
	return id, nil
}

// Root handles GET /api/
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Card Organizer API"})
}

// Health reports whether the record store is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("Health check failed")
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", DB: "unreachable"})
		return
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", DB: "ok"})
}

// ListCards handles GET /api/cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ListCards(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cards)
}

// GetCard handles GET /api/cards/{id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.GetCard(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// CreateCard handles POST /api/cards
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req models.CardCreate
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.CreateCard(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// UpdateCard handles PUT /api/cards/{id}
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req models.CardUpdate
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.UpdateCard(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// UpdateStatus handles PATCH /api/cards/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req models.StatusUpdate
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.UpdateStatus(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// DeleteCard handles DELETE /api/cards/{id}
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteCard(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Card deleted successfully"})
}

// RemoveDuplicates handles DELETE /api/cards/duplicates
func (h *Handler) RemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RemoveDuplicates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// LookupBin handles GET /api/bin/{bin_number}; it always answers 200
func (h *Handler) LookupBin(w http.ResponseWriter, r *http.Request) {
	info := h.svc.LookupBin(r.Context(), mux.Vars(r)["bin_number"])
	h.writeJSON(w, http.StatusOK, info)
}
