// Package storetest provides an in-memory Store implementation for
// tests. Timestamps are deterministic: each insert advances a synthetic
// clock by one millisecond.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mosaic-social/mosaic/internal/models"
	"github.com/mosaic-social/mosaic/internal/store"
)

// Memory is an in-memory store.Store.
type Memory struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]models.Profile
	messages []models.Message
	clock    time.Time

	// Error injection for failure-path tests.
	InsertErr error
	QueryErr  error
}

var _ store.Store = (*Memory)(nil)

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		profiles: make(map[uuid.UUID]models.Profile),
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// AddProfile creates a profile directly, for test setup.
func (m *Memory) AddProfile(username string) models.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile := models.Profile{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: m.tick(),
	}
	m.profiles[profile.ID] = profile
	return profile
}

func (m *Memory) Close() {}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) CreateProfile(ctx context.Context, username, avatarURL string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile := models.Profile{
		ID:        uuid.New(),
		Username:  username,
		AvatarURL: avatarURL,
		CreatedAt: m.tick(),
	}
	m.profiles[profile.ID] = profile
	return &profile, nil
}

func (m *Memory) GetProfileByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return nil, err
	}
	profile, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

func (m *Memory) GetProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Profile, len(ids))
	for _, id := range ids {
		if profile, ok := m.profiles[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

func (m *Memory) ProfileExists(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return false, err
	}
	_, ok := m.profiles[id]
	return ok, nil
}

func (m *Memory) InsertMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.InsertErr; err != nil {
		return nil, err
	}
	msg := models.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  m.tick(),
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *Memory) MessagesBetween(ctx context.Context, userA, userB uuid.UUID, limit, offset int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return nil, err
	}
	var matched []models.Message
	for _, msg := range m.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			matched = append(matched, msg)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) RecentMessages(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return nil, err
	}
	var matched []models.Message
	for i := len(m.messages) - 1; i >= 0 && len(matched) < limit; i-- {
		msg := m.messages[i]
		if msg.SenderID == userID || msg.ReceiverID == userID {
			matched = append(matched, msg)
		}
	}
	return matched, nil
}

func (m *Memory) MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.QueryErr; err != nil {
		return 0, err
	}
	var n int64
	now := m.tick()
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && msg.ReadAt == nil {
			at := now
			msg.ReadAt = &at
			n++
		}
	}
	return n, nil
}

// tick advances the synthetic clock. Callers must hold mu.
func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}
