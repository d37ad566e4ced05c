package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mosaic-social/mosaic/internal/models"
)

// GetConversations lists the caller's conversations, newest first, with
// the last message and unread count per partner. Summaries are derived
// from a bounded window of recent messages, so partners with no activity
// inside the window are not listed.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	summaries, err := h.chat.Conversations(r.Context(), userID)
	if err != nil {
		h.chatError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	h.JSON(w, http.StatusOK, summaries)
}
