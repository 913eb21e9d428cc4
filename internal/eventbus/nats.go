package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/cloudsbay/tasker/internal/types"
)

// NATSBus publishes profile events to JetStream and delivers them to
// watchers through core NATS subscriptions, so every process connected to
// the same server sees every change.
type NATSBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// NewNATSBus ensures the profile stream exists on nc's server.
func NewNATSBus(nc *nats.Conn, logger *slog.Logger) (*NATSBus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get JetStream context: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		return nil, err
	}
	return &NATSBus{nc: nc, js: js, logger: logger}, nil
}

// Publish stores the event on the profile stream.
func (b *NATSBus) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("eventbus: nil event")
	}
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("eventbus: encode event: %w", err)
	}
	if _, err := b.js.Publish(SubjectForProfile(event.UID), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s for %s: %w", event.Type, event.UID, err)
	}
	return nil
}

// Watch subscribes to uid's profile subject. Callbacks run on the NATS
// client's delivery goroutine, one at a time.
func (b *NATSBus) Watch(ctx context.Context, uid string, fn func(*types.User)) (Subscription, error) {
	if uid == "" {
		return nil, fmt.Errorf("eventbus: uid is required")
	}
	sub, err := b.nc.Subscribe(SubjectForProfile(uid), func(msg *nats.Msg) {
		event, err := UnmarshalEvent(msg.Data)
		if err != nil {
			b.logger.Warn("dropping malformed profile event", "err", err)
			return
		}
		fn(profileOf(event))
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to profile %s: %w", uid, err)
	}
	// Round-trip so the subscription is registered before Watch returns.
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	s := &natsSubscription{sub: sub, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()
	return s, nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
	done chan struct{}
}

// Stop unsubscribes. Safe to call more than once.
func (s *natsSubscription) Stop() {
	s.once.Do(func() {
		_ = s.sub.Unsubscribe()
		close(s.done)
	})
}
