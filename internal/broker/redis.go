package broker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mosaic-social/mosaic/internal/metrics"
)

// Broker wraps Redis pub/sub for per-user message fanout. One channel
// exists per recipient identity; there are no broadcast channels. The
// broker is fanout-only: a publish with no subscribers is lost, delivery
// to offline users happens through history instead.
type Broker struct {
	client *redis.Client
	logger zerolog.Logger
}

// New creates a new Broker connected to the given Redis URL.
func New(ctx context.Context, redisURL string, logger zerolog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Broker{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Client exposes the underlying Redis client for middleware that shares
// the connection (rate limiting).
func (b *Broker) Client() *redis.Client {
	return b.client
}

// Ping checks the Redis connection.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// channelFor returns the pub/sub channel name for a user.
func channelFor(userID string) string {
	return "chat:" + userID
}

// Publish serializes the payload and publishes it to the user's channel.
// The returned count is the number of subscribers notified; it is not a
// delivery guarantee.
func (b *Broker) Publish(ctx context.Context, userID string, payload any) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	return b.client.Publish(ctx, channelFor(userID), data).Result()
}

// Subscribe opens a subscription to the user's channel. It blocks until
// the subscription is confirmed so that no publish racing the call is
// missed. The subscription must be closed by the caller.
func (b *Broker) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channelFor(userID))

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &Subscription{
		ps:     ps,
		ch:     make(chan []byte, 16),
		quit:   make(chan struct{}),
		logger: b.logger.With().Str("channel", channelFor(userID)).Logger(),
	}
	go sub.run()

	return sub, nil
}

// Subscription is a live pub/sub subscription for one user's channel.
// Messages terminates only when the subscription is closed.
type Subscription struct {
	ps     *redis.PubSub
	ch     chan []byte
	quit   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// Messages returns the stream of payloads for the channel. The channel
// is closed when the subscription is closed.
func (s *Subscription) Messages() <-chan []byte {
	return s.ch
}

// Close releases the subscription. After Close returns, the Messages
// channel drains and closes. Safe to call repeatedly.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		err = s.ps.Close()
	})
	return err
}

// run forwards payloads from Redis to the Messages channel, dropping
// malformed ones. It exits when the subscription is closed, even with
// undelivered payloads still queued: a closed subscription has no
// consumer left to hand them to.
func (s *Subscription) run() {
	defer close(s.ch)

	for m := range s.ps.Channel() {
		payload := []byte(m.Payload)
		if !json.Valid(payload) {
			metrics.BrokerPayloadsDropped.Inc()
			s.logger.Warn().Str("payload", truncate(m.Payload, 128)).Msg("dropping malformed payload")
			continue
		}
		select {
		case s.ch <- payload:
		case <-s.quit:
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
