package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

const (
	// StreamProfileEvents is the JetStream stream for profile changes.
	StreamProfileEvents = "PROFILE_EVENTS"

	// SubjectProfilePrefix is the subject prefix for all profile events.
	SubjectProfilePrefix = "profiles."
)

// SubjectForProfile returns the NATS subject for one account's profile events.
// Format: profiles.<uid>
func SubjectForProfile(uid string) string {
	return SubjectProfilePrefix + uid
}

// EnsureStreams creates the required JetStream streams if they don't already
// exist.
func EnsureStreams(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamProfileEvents)
	if err == nil {
		return nil // Stream already exists.
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamProfileEvents,
		Subjects: []string{SubjectProfilePrefix + ">"},
		Storage:  nats.FileStorage,
		// Only the latest change per account matters to subscribers.
		MaxMsgsPerSubject: 1,
		MaxBytes:          64 << 20,
	})
	if err != nil {
		return fmt.Errorf("create %s stream: %w", StreamProfileEvents, err)
	}

	return nil
}
