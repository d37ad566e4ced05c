package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mosaic-social/mosaic/internal/metrics"
	"github.com/mosaic-social/mosaic/internal/models"
	"github.com/mosaic-social/mosaic/internal/store"
)

// DefaultConversationWindow is the number of recent messages the
// conversation aggregator inspects. Partners whose last exchange falls
// entirely outside this window do not appear in the summary view.
const DefaultConversationWindow = 500

// Service orchestrates messaging operations over the store and broker.
type Service struct {
	store  store.Store
	broker MessageBroker
	logger zerolog.Logger
	window int
}

// NewService creates a messaging service. window bounds the conversation
// aggregation; zero or negative selects the default.
func NewService(st store.Store, b MessageBroker, logger zerolog.Logger, window int) *Service {
	if window <= 0 {
		window = DefaultConversationWindow
	}
	return &Service{store: st, broker: b, logger: logger, window: window}
}

// Send persists a message, publishes it to the receiver's channel and
// returns the stored message. A broker fault after persistence returns
// the stored message together with an ErrBrokerUnavailable-wrapped
// error: the message is durable, only live delivery degraded.
func (s *Service) Send(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: sender and receiver must differ", ErrValidation)
	}

	if err := s.requireProfiles(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	msg, err := s.store.InsertMessage(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, fmt.Errorf("%w: insert: %v", ErrPersistence, err)
	}

	envelope := NewMessageEnvelope(msg)
	receivers, err := s.broker.Publish(ctx, receiverID.String(), envelope)
	if err != nil {
		metrics.BrokerPublishTotal.WithLabelValues("error").Inc()
		s.logger.Warn().
			Err(err).
			Str("message_id", msg.ID.String()).
			Str("receiver_id", receiverID.String()).
			Msg("publish failed, message retrievable via history only")
		return msg, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	metrics.BrokerPublishTotal.WithLabelValues("ok").Inc()

	s.logger.Debug().
		Str("message_id", msg.ID.String()).
		Int64("receivers", receivers).
		Msg("message published")

	return msg, nil
}

// History returns a page of messages between two users, oldest first.
func (s *Service) History(ctx context.Context, userID, otherID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if err := s.requireProfiles(ctx, userID, otherID); err != nil {
		return nil, err
	}

	messages, err := s.store.MessagesBetween(ctx, userID, otherID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: range: %v", ErrPersistence, err)
	}
	return messages, nil
}

// Conversations derives per-partner summaries from the newest window of
// the user's messages. Input is newest-first, so the first message seen
// for a partner is that conversation's most recent one.
func (s *Service) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	if err := s.requireProfiles(ctx, userID); err != nil {
		return nil, err
	}

	recent, err := s.store.RecentMessages(ctx, userID, s.window)
	if err != nil {
		return nil, fmt.Errorf("%w: recent: %v", ErrPersistence, err)
	}

	byPartner := make(map[uuid.UUID]*models.ConversationSummary)
	order := make([]uuid.UUID, 0)

	for i := range recent {
		msg := &recent[i]

		partner := msg.SenderID
		if partner == userID {
			partner = msg.ReceiverID
		}

		summary, ok := byPartner[partner]
		if !ok {
			summary = &models.ConversationSummary{
				PartnerID:     partner,
				LastMessage:   msg.Content,
				LastMessageAt: msg.CreatedAt,
			}
			byPartner[partner] = summary
			order = append(order, partner)
		}

		if msg.ReceiverID == userID && msg.ReadAt == nil {
			summary.UnreadCount++
		}
	}

	profiles, err := s.store.GetProfilesByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%w: profiles: %v", ErrPersistence, err)
	}

	summaries := make([]models.ConversationSummary, 0, len(order))
	for _, partner := range order {
		summary := *byPartner[partner]
		if profile, ok := profiles[partner]; ok {
			summary.Username = profile.Username
			summary.AvatarURL = profile.AvatarURL
		}
		summaries = append(summaries, summary)
	}

	// order is already newest-first by each partner's latest message, so
	// a stable sort keeps window arrival order for timestamp ties.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})

	return summaries, nil
}

// MarkRead stamps all unread messages from otherID to userID and returns
// the number of messages transitioned. Idempotent.
func (s *Service) MarkRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error) {
	if err := s.requireProfiles(ctx, userID, otherID); err != nil {
		return 0, err
	}

	n, err := s.store.MarkRead(ctx, userID, otherID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", ErrPersistence, err)
	}
	return n, nil
}

// requireProfiles validates that every given identity resolves.
func (s *Service) requireProfiles(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		exists, err := s.store.ProfileExists(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: exists: %v", ErrPersistence, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
	}
	return nil
}
