package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is a derived view of a user's messages grouped by
// the other participant. It is computed from a bounded window of recent
// messages and never persisted.
type ConversationSummary struct {
	PartnerID     uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}
