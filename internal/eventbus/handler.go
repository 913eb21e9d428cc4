package eventbus

import "context"

// Handler consumes profile events. The in-process Bus calls every handler
// whose Handles list contains the event type, in registration order.
type Handler interface {
	ID() string
	Handles() []EventType

	// Handle errors are logged and do not stop later handlers.
	Handle(ctx context.Context, event *Event) error
}

// Subscription is a live registration. Stop is idempotent.
type Subscription interface {
	Stop()
}

// Publisher sends profile events.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
