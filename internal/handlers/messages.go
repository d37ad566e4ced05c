package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mosaic-social/mosaic/internal/metrics"
	"github.com/mosaic-social/mosaic/internal/models"
)

// SendMessageRequest represents the REST send request body.
type SendMessageRequest struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// MarkReadRequest represents the mark-read request body.
type MarkReadRequest struct {
	UserID      string `json:"user_id"`
	OtherUserID string `json:"other_user_id"`
}

// MarkReadResponse reports how many messages transitioned to read.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// SendMessage handles sending a message via REST. The message is also
// published to the receiver's channel for live delivery.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid sender_id")
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid receiver_id")
		return
	}

	msg, err := h.chat.Send(r.Context(), senderID, receiverID, req.Content)
	if msg == nil {
		h.chatError(w, err)
		return
	}
	metrics.MessagesSent.WithLabelValues("rest").Inc()

	// A broker fault after persistence is absorbed: the message is
	// durable and retrievable via history, so the send still succeeds.
	h.JSON(w, http.StatusCreated, msg)
}

// GetHistory handles paginated message history between two users,
// oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	otherID, err := uuid.Parse(chi.URLParam(r, "other_user_id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if o, err := strconv.Atoi(s); err == nil && o >= 0 {
			offset = o
		}
	}

	messages, err := h.chat.History(r.Context(), userID, otherID, limit, offset)
	if err != nil {
		h.chatError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, messages)
}

// MarkRead stamps all unread messages from other_user_id to user_id.
// Idempotent: a repeat call reports zero updates.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	otherID, err := uuid.Parse(req.OtherUserID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid other_user_id")
		return
	}

	updated, err := h.chat.MarkRead(r.Context(), userID, otherID)
	if err != nil {
		h.chatError(w, err)
		return
	}
	metrics.MessagesMarkedRead.Add(float64(updated))

	h.JSON(w, http.StatusOK, MarkReadResponse{Updated: updated})
}
