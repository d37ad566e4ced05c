package chat

import (
	"context"

	"github.com/mosaic-social/mosaic/internal/broker"
)

// MessageBroker is the publish/subscribe surface the chat layer consumes.
type MessageBroker interface {
	// Publish fans a payload out to the user's channel, returning the
	// number of subscribers notified. Not a delivery guarantee.
	Publish(ctx context.Context, userID string, payload any) (int64, error)

	// Subscribe opens a subscription to the user's channel.
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}

// Subscription is a cancellable stream of channel payloads.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// WrapBroker adapts the Redis broker to the MessageBroker interface.
func WrapBroker(b *broker.Broker) MessageBroker {
	return redisBroker{b}
}

type redisBroker struct {
	b *broker.Broker
}

func (r redisBroker) Publish(ctx context.Context, userID string, payload any) (int64, error) {
	return r.b.Publish(ctx, userID, payload)
}

func (r redisBroker) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	return r.b.Subscribe(ctx, userID)
}
