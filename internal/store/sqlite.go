package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mosaic-social/mosaic/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/mosaic.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/mosaic.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_loc=UTC")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES profiles(id),
		receiver_id TEXT NOT NULL REFERENCES profiles(id),
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		read_at DATETIME,
		CHECK (sender_id <> receiver_id),
		CHECK (content <> '')
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateProfile creates a new profile record.
func (s *SQLiteStore) CreateProfile(ctx context.Context, username, avatarURL string) (*models.Profile, error) {
	profile := &models.Profile{
		ID:        uuid.New(),
		Username:  username,
		AvatarURL: avatarURL,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, avatar_url, created_at)
		VALUES (?, ?, ?, ?)
	`, profile.ID.String(), profile.Username, profile.AvatarURL, profile.CreatedAt)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfileByID retrieves a profile by ID.
func (s *SQLiteStore) GetProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, avatar_url, created_at
		FROM profiles WHERE id = ?
	`, id.String())

	profile, err := scanSQLiteProfile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return profile, nil
}

// GetProfilesByIDs retrieves multiple profiles in one query, keyed by ID.
func (s *SQLiteStore) GetProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	profiles := make(map[uuid.UUID]models.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, avatar_url, created_at
		FROM profiles WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		profile, err := scanSQLiteProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		profiles[profile.ID] = *profile
	}

	return profiles, rows.Err()
}

// ProfileExists reports whether a profile with the given ID exists.
func (s *SQLiteStore) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM profiles WHERE id = ?
	`, id.String()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertMessage persists a new message, assigning ID and created_at.
func (s *SQLiteStore) InsertMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID.String(), msg.SenderID.String(), msg.ReceiverID.String(), msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MessagesBetween retrieves messages between exactly two users,
// oldest first, with offset pagination.
func (s *SQLiteStore) MessagesBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at, read_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, userA.String(), userB.String(), userB.String(), userA.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMessages(rows)
}

// RecentMessages retrieves the newest messages involving the user,
// newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at, read_at
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID.String(), userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLiteMessages(rows)
}

// MarkRead stamps read_at on unread messages from senderID to receiverID.
func (s *SQLiteStore) MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET read_at = ?
		WHERE receiver_id = ? AND sender_id = ? AND read_at IS NULL
	`, time.Now().UTC(), receiverID.String(), senderID.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSQLiteProfile(scan func(dest ...any) error) (*models.Profile, error) {
	var (
		profile models.Profile
		idStr   string
	)
	if err := scan(&idStr, &profile.Username, &profile.AvatarURL, &profile.CreatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	profile.ID = id
	return &profile, nil
}

func scanSQLiteMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var (
			msg                   models.Message
			idStr, fromStr, toStr string
		)
		err := rows.Scan(&idStr, &fromStr, &toStr, &msg.Content, &msg.CreatedAt, &msg.ReadAt)
		if err != nil {
			return nil, err
		}
		if msg.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if msg.SenderID, err = uuid.Parse(fromStr); err != nil {
			return nil, err
		}
		if msg.ReceiverID, err = uuid.Parse(toStr); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
