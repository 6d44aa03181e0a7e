// ABOUTME: Pub/sub transport abstraction for snapshots and mutation intents
// ABOUTME: Backends are an in-process fan-out and a NATS connection

package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Handler receives messages published on a subject. Messages of one
// subscription are delivered in publish order, one at a time.
type Handler func(subject string, data []byte)

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus publishes and delivers raw messages by subject.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, h Handler) (Subscription, error)
	Close() error
}
