package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/mosaic-social/mosaic/internal/models"
)

// Store defines the interface for durable storage of profiles and
// messages. Both PostgresStore and SQLiteStore implement this interface.
type Store interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Profile operations
	CreateProfile(ctx context.Context, username, avatarURL string) (*models.Profile, error)
	GetProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error)
	ProfileExists(ctx context.Context, id uuid.UUID) (bool, error)

	// Message operations. InsertMessage assigns the ID and CreatedAt.
	InsertMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error)

	// MessagesBetween returns messages exchanged between exactly the two
	// given users, oldest first, with offset pagination.
	MessagesBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]models.Message, error)

	// RecentMessages returns the newest messages involving the user as
	// sender or receiver, newest first.
	RecentMessages(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error)

	// MarkRead stamps read_at on all unread messages from senderID to
	// receiverID and returns the number of rows transitioned. Repeat
	// calls return 0 and change nothing.
	MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error)
}
