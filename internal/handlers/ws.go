package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mosaic-social/mosaic/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Identity verification happens upstream; the frontend connects from
	// arbitrary origins behind the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and runs a live messaging session for
// the user. Blocks until the session ends.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	exists, err := h.store.ProfileExists(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile lookup failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if !exists {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := chat.NewSession(userID, conn, h.chat, h.registry, h.logger)
	session.Run(r.Context())
}
