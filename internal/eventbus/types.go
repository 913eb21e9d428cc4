package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudsbay/tasker/internal/types"
)

// EventType identifies an event flowing through the bus.
type EventType string

const (
	// EventProfileUpdated carries the full profile after any change.
	EventProfileUpdated EventType = "ProfileUpdated"
	// EventProfileDeleted is published after the profile record is removed.
	EventProfileDeleted EventType = "ProfileDeleted"
)

// Event is a profile change for one account.
type Event struct {
	Type    EventType          `json:"type"`
	UID     string             `json:"uid"`
	Field   types.ProfileField `json:"field,omitempty"` // set for single-field updates
	Profile *types.User        `json:"profile,omitempty"`
	At      time.Time          `json:"at"`
}

// Marshal encodes the event for the wire.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes a wire event.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("eventbus: decode event: %w", err)
	}
	if e.Type == "" || e.UID == "" {
		return nil, fmt.Errorf("eventbus: event missing type or uid")
	}
	return &e, nil
}
