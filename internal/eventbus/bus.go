package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cloudsbay/tasker/internal/types"
)

// Bus dispatches events to registered handlers in-process. It backs the
// profile feed when no NATS server is configured; NATSBus is the
// distributed equivalent.
type Bus struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
	seq      atomic.Int64
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{logger: slog.Default()}
}

// SetLogger replaces the logger used for handler errors.
func (b *Bus) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

// Register adds a handler to the bus. Handlers run in registration order.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Unregister removes the handler with the given id.
func (b *Bus) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.ID() == id {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Dispatch sends an event to all registered handlers that handle its type.
// Handlers are called sequentially in registration order.
// Handler errors are logged but do not stop the chain.
func (b *Bus) Dispatch(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("eventbus: nil event")
	}

	b.mu.RLock()
	matching := b.matchingHandlers(event.Type)
	b.mu.RUnlock()

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("eventbus: context cancelled: %w", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Warn("eventbus handler error", "handler", h.ID(), "event", string(event.Type), "err", err)
		}
	}
	return nil
}

// Publish implements Publisher by dispatching locally.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	return b.Dispatch(ctx, event)
}

// matchingHandlers returns handlers that handle the given event type. Must
// be called with at least a read lock held.
func (b *Bus) matchingHandlers(eventType EventType) []Handler {
	var matched []Handler
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == eventType {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}

// Watch delivers profile changes for uid to fn until the subscription is
// stopped or ctx ends. A deleted profile is delivered as nil.
func (b *Bus) Watch(ctx context.Context, uid string, fn func(*types.User)) (Subscription, error) {
	if uid == "" {
		return nil, fmt.Errorf("eventbus: uid is required")
	}
	h := &profileWatcher{
		id:  fmt.Sprintf("watch-%s-%d", uid, b.seq.Add(1)),
		uid: uid,
		fn:  fn,
	}
	b.Register(h)
	sub := &busSubscription{bus: b, id: h.id, done: make(chan struct{})}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Stop()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

type profileWatcher struct {
	id  string
	uid string
	fn  func(*types.User)
}

func (w *profileWatcher) ID() string { return w.id }
func (w *profileWatcher) Handles() []EventType {
	return []EventType{EventProfileUpdated, EventProfileDeleted}
}

func (w *profileWatcher) Handle(_ context.Context, event *Event) error {
	if event.UID != w.uid {
		return nil
	}
	w.fn(profileOf(event))
	return nil
}

// profileOf returns the profile a subscriber should see for event.
func profileOf(event *Event) *types.User {
	if event.Type == EventProfileDeleted || event.Profile == nil {
		return nil
	}
	return event.Profile.Clone()
}

type busSubscription struct {
	bus  *Bus
	id   string
	once sync.Once
	done chan struct{}
}

// Stop unregisters the watcher. Safe to call more than once.
func (s *busSubscription) Stop() {
	s.once.Do(func() {
		s.bus.Unregister(s.id)
		close(s.done)
	})
}
