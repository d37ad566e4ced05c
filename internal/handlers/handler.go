package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mosaic-social/mosaic/internal/broker"
	"github.com/mosaic-social/mosaic/internal/chat"
	"github.com/mosaic-social/mosaic/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.Store
	broker   *broker.Broker
	chat     *chat.Service
	registry *chat.Registry
	logger   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.Store, b *broker.Broker, svc *chat.Service, registry *chat.Registry, logger zerolog.Logger) *Handler {
	return &Handler{store: st, broker: b, chat: svc, registry: registry, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// chatError maps the messaging error taxonomy onto HTTP responses.
func (h *Handler) chatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		h.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, chat.ErrValidation):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrBrokerUnavailable):
		h.Error(w, http.StatusServiceUnavailable, "broker unavailable")
	default:
		h.logger.Error().Err(err).Msg("internal error")
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}
