package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaic-social/mosaic/internal/chat"
	"github.com/mosaic-social/mosaic/internal/store/storetest"
)

// fakeBroker routes published payloads to in-process subscriptions.
type fakeBroker struct {
	mu         sync.Mutex
	subs       map[string][]*fakeSub
	published  map[string][][]byte
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		subs:      make(map[string][]*fakeSub),
		published: make(map[string][][]byte),
	}
}

func (b *fakeBroker) Publish(ctx context.Context, userID string, payload any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return 0, b.publishErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	b.published[userID] = append(b.published[userID], data)
	var n int64
	for _, sub := range b.subs[userID] {
		if sub.deliver(data) {
			n++
		}
	}
	return n, nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, userID string) (chat.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &fakeSub{ch: make(chan []byte, 64)}
	b.subs[userID] = append(b.subs[userID], sub)
	return sub, nil
}

func (b *fakeBroker) publishedTo(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[userID])
}

type fakeSub struct {
	ch     chan []byte
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (s *fakeSub) Messages() <-chan []byte { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (s *fakeSub) deliver(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- data
	return true
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newService(t *testing.T) (*chat.Service, *storetest.Memory, *fakeBroker) {
	t.Helper()
	mem := storetest.New()
	b := newFakeBroker()
	return chat.NewService(mem, b, zerolog.Nop(), 0), mem, b
}

func TestSendPersistsAndPublishes(t *testing.T) {
	svc, mem, b := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	msg, err := svc.Send(ctx, alice.ID, bob.ID, "hello bob")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.Equal(t, "hello bob", msg.Content)
	assert.Nil(t, msg.ReadAt)
	assert.False(t, msg.CreatedAt.IsZero())

	// Published once, to the receiver's channel only.
	assert.Equal(t, 1, b.publishedTo(bob.ID.String()))
	assert.Equal(t, 0, b.publishedTo(alice.ID.String()))

	// The new message is the last entry of the history range.
	history, err := svc.History(ctx, alice.ID, bob.ID, 50, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, msg.ID, history[len(history)-1].ID)
}

func TestSendValidation(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	_, err := svc.Send(ctx, alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, chat.ErrValidation)

	_, err = svc.Send(ctx, alice.ID, alice.ID, "hi me")
	assert.ErrorIs(t, err, chat.ErrValidation)

	_, err = svc.Send(ctx, alice.ID, uuid.New(), "anyone there")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestSendBrokerFaultIsAbsorbed(t *testing.T) {
	svc, mem, b := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	b.publishErr = errors.New("connection refused")

	msg, err := svc.Send(ctx, alice.ID, bob.ID, "are you there")
	require.NotNil(t, msg, "message must be persisted before publish")
	assert.ErrorIs(t, err, chat.ErrBrokerUnavailable)

	// Retrievable via history even though fanout failed.
	history, err := svc.History(ctx, bob.ID, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "are you there", history[0].Content)
}

func TestSendPersistenceFault(t *testing.T) {
	svc, mem, b := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	mem.InsertErr = errors.New("disk full")

	msg, err := svc.Send(ctx, alice.ID, bob.ID, "hello")
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, chat.ErrPersistence)
	assert.Equal(t, 0, b.publishedTo(bob.ID.String()), "nothing published on persist failure")
}

func TestSendOrdering(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	for _, content := range []string{"first", "second", "third"} {
		_, err := svc.Send(ctx, alice.ID, bob.ID, content)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
	assert.Equal(t, "third", history[2].Content)
}

func TestHistoryPagination(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	_, err := svc.Send(ctx, alice.ID, bob.ID, "oldest")
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, alice.ID, "middle")
	require.NoError(t, err)
	_, err = svc.Send(ctx, alice.ID, bob.ID, "newest")
	require.NoError(t, err)

	page, err := svc.History(ctx, alice.ID, bob.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "oldest", page[0].Content)

	page, err = svc.History(ctx, alice.ID, bob.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "middle", page[0].Content)
}

func TestHistoryUnknownUser(t *testing.T) {
	svc, mem, _ := newService(t)
	alice := mem.AddProfile("alice")

	_, err := svc.History(context.Background(), alice.ID, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestConversationsAggregation(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	// A sends "hi" to B, then B replies "hello" (unread by A).
	_, err := svc.Send(ctx, alice.ID, bob.ID, "hi")
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, alice.ID, "hello")
	require.NoError(t, err)

	summaries, err := svc.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	conv := summaries[0]
	assert.Equal(t, bob.ID, conv.PartnerID)
	assert.Equal(t, "bob", conv.Username)
	assert.Equal(t, "hello", conv.LastMessage)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestConversationsSortedByRecency(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")
	carol := mem.AddProfile("carol")

	_, err := svc.Send(ctx, alice.ID, bob.ID, "hey bob")
	require.NoError(t, err)
	_, err = svc.Send(ctx, alice.ID, carol.ID, "hey carol")
	require.NoError(t, err)

	summaries, err := svc.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, carol.ID, summaries[0].PartnerID, "most recent conversation first")
	assert.Equal(t, bob.ID, summaries[1].PartnerID)

	// Messages sent by the requester never count as unread.
	assert.Equal(t, 0, summaries[0].UnreadCount)
	assert.Equal(t, 0, summaries[1].UnreadCount)
}

func TestConversationsBoundedWindow(t *testing.T) {
	mem := storetest.New()
	b := newFakeBroker()
	// A window of 2 messages hides older partners.
	svc := chat.NewService(mem, b, zerolog.Nop(), 2)
	ctx := context.Background()

	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")
	carol := mem.AddProfile("carol")

	_, err := svc.Send(ctx, bob.ID, alice.ID, "old news")
	require.NoError(t, err)
	_, err = svc.Send(ctx, carol.ID, alice.ID, "fresh")
	require.NoError(t, err)
	_, err = svc.Send(ctx, carol.ID, alice.ID, "fresher")
	require.NoError(t, err)

	summaries, err := svc.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1, "partner outside the window is omitted")
	assert.Equal(t, carol.ID, summaries[0].PartnerID)
	assert.Equal(t, "fresher", summaries[0].LastMessage)
	assert.Equal(t, 2, summaries[0].UnreadCount)
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, mem, _ := newService(t)
	ctx := context.Background()
	alice := mem.AddProfile("alice")
	bob := mem.AddProfile("bob")

	_, err := svc.Send(ctx, bob.ID, alice.ID, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, alice.ID, "two")
	require.NoError(t, err)

	n, err := svc.MarkRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	history, err := svc.History(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	firstReadAt := history[0].ReadAt
	require.NotNil(t, firstReadAt)

	// Second call transitions nothing and leaves timestamps untouched.
	n, err = svc.MarkRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	history, err = svc.History(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.NotNil(t, history[0].ReadAt)
	assert.Equal(t, *firstReadAt, *history[0].ReadAt)

	// Unread count drops to zero after marking.
	summaries, err := svc.Conversations(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 0, summaries[0].UnreadCount)
}
