package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func TestSQLiteProfileRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateProfile(ctx, "alice", "https://example.com/a.png")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := st.GetProfileByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "https://example.com/a.png", got.AvatarURL)

	missing, err := st.GetProfileByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := st.ProfileExists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = st.ProfileExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteGetProfilesByIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "alice", "")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "bob", "")
	require.NoError(t, err)

	profiles, err := st.GetProfilesByIDs(ctx, []uuid.UUID{alice.ID, bob.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, profiles, 2, "unknown IDs are skipped, not errors")
	assert.Equal(t, "alice", profiles[alice.ID].Username)
	assert.Equal(t, "bob", profiles[bob.ID].Username)

	empty, err := st.GetProfilesByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteMessageFlow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "alice", "")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "bob", "")
	require.NoError(t, err)

	send := func(from, to uuid.UUID, content string) {
		t.Helper()
		_, err := st.InsertMessage(ctx, from, to, content)
		require.NoError(t, err)
		// Distinct created_at per message.
		time.Sleep(2 * time.Millisecond)
	}
	send(alice.ID, bob.ID, "one")
	send(bob.ID, alice.ID, "two")
	send(alice.ID, bob.ID, "three")

	between, err := st.MessagesBetween(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, between, 3)
	assert.Equal(t, "one", between[0].Content)
	assert.Equal(t, "two", between[1].Content)
	assert.Equal(t, "three", between[2].Content)
	assert.Nil(t, between[0].ReadAt)

	page, err := st.MessagesBetween(ctx, alice.ID, bob.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Content)

	recent, err := st.RecentMessages(ctx, alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content, "newest first")
	assert.Equal(t, "two", recent[1].Content)
}

func TestSQLiteMarkRead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "alice", "")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "bob", "")
	require.NoError(t, err)

	_, err = st.InsertMessage(ctx, bob.ID, alice.ID, "unread one")
	require.NoError(t, err)
	_, err = st.InsertMessage(ctx, bob.ID, alice.ID, "unread two")
	require.NoError(t, err)
	_, err = st.InsertMessage(ctx, alice.ID, bob.ID, "own message")
	require.NoError(t, err)

	n, err := st.MarkRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "only inbound messages are stamped")

	n, err = st.MarkRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	messages, err := st.MessagesBetween(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for _, msg := range messages {
		if msg.ReceiverID == alice.ID {
			assert.NotNil(t, msg.ReadAt)
		} else {
			assert.Nil(t, msg.ReadAt, "the sender's own outbound stays untouched")
		}
	}
}

func TestSQLiteOrderingTiebreak(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "alice", "")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "bob", "")
	require.NoError(t, err)

	// Two messages landing on the exact same timestamp; the high id is
	// inserted first so insertion order and id order disagree.
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		id      uuid.UUID
		content string
	}{
		{uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"), "high"},
		{uuid.MustParse("00000000-0000-0000-0000-000000000001"), "low"},
	}
	for _, row := range rows {
		_, err := st.db.ExecContext(ctx, `
			INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, row.id.String(), alice.ID.String(), bob.ID.String(), row.content, at)
		require.NoError(t, err)
	}

	between, err := st.MessagesBetween(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "low", between[0].Content, "equal timestamps order by id ascending")
	assert.Equal(t, "high", between[1].Content)

	recent, err := st.RecentMessages(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "high", recent[0].Content, "equal timestamps order by id descending")
	assert.Equal(t, "low", recent[1].Content)
}

func TestSQLiteRejectsSelfSend(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateProfile(ctx, "alice", "")
	require.NoError(t, err)

	_, err = st.InsertMessage(ctx, alice.ID, alice.ID, "talking to myself")
	assert.Error(t, err)

	bob, err := st.CreateProfile(ctx, "bob", "")
	require.NoError(t, err)
	_, err = st.InsertMessage(ctx, alice.ID, bob.ID, "")
	assert.Error(t, err, "empty content violates the schema check")
}
