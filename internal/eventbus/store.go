package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// NotifyingStore publishes a profile event after every successful profile
// write. Publish failures are logged; the write itself has already
// succeeded and is reported as such.
type NotifyingStore struct {
	storage.Storage
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifyingStore wraps s so profile writes are published on pub.
func NewNotifyingStore(s storage.Storage, pub Publisher, logger *slog.Logger) *NotifyingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyingStore{
		Storage: s,
		pub:     pub,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SaveProfile stores the profile and publishes it.
func (n *NotifyingStore) SaveProfile(ctx context.Context, uid string, user *types.User) error {
	if err := n.Storage.SaveProfile(ctx, uid, user); err != nil {
		return err
	}
	n.publish(ctx, &Event{Type: EventProfileUpdated, UID: uid, Profile: user.Clone()})
	return nil
}

// UpdateProfileField updates one field and publishes the resulting profile.
func (n *NotifyingStore) UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error {
	if err := n.Storage.UpdateProfileField(ctx, uid, field, value); err != nil {
		return err
	}
	profile, err := n.Storage.GetProfile(ctx, uid)
	if err != nil {
		n.logger.Warn("updated profile not readable for publish", "field", string(field), "err", err)
		return nil
	}
	n.publish(ctx, &Event{Type: EventProfileUpdated, UID: uid, Field: field, Profile: profile})
	return nil
}

// DeleteProfile removes the profile and publishes the deletion.
func (n *NotifyingStore) DeleteProfile(ctx context.Context, uid string) error {
	if err := n.Storage.DeleteProfile(ctx, uid); err != nil {
		return err
	}
	n.publish(ctx, &Event{Type: EventProfileDeleted, UID: uid})
	return nil
}

func (n *NotifyingStore) publish(ctx context.Context, e *Event) {
	e.At = n.now()
	if err := n.pub.Publish(ctx, e); err != nil {
		n.logger.Warn("failed to publish profile event", "event", string(e.Type), "err", err)
	}
}
