package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a direct message between two users.
// ID and CreatedAt are assigned by the store at insert time.
// ReadAt transitions from nil to a timestamp at most once, via mark-read,
// and only on the receiver's behalf.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at"`
}
