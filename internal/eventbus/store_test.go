package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/storage/memory"
	"github.com/cloudsbay/tasker/internal/testutil/teststore"
	"github.com/cloudsbay/tasker/internal/types"
)

type recordingPublisher struct {
	events []*Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *Event) error {
	p.events = append(p.events, e)
	return p.err
}

func TestNotifyingStoreConformance(t *testing.T) {
	teststore.Run(t, func(t *testing.T) storage.Storage {
		return NewNotifyingStore(memory.New(), &recordingPublisher{}, quiet)
	})
}

func TestNotifyingStorePublishesProfileWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewNotifyingStore(memory.New(), pub, quiet)

	require.NoError(t, s.SaveProfile(ctx, "uid-1", &types.User{Name: "Ann", Email: "ann@example.com"}))
	require.NoError(t, s.UpdateProfileField(ctx, "uid-1", types.FieldPhoneNumber, "+15550100"))
	require.NoError(t, s.DeleteProfile(ctx, "uid-1"))

	require.Len(t, pub.events, 3)
	assert.Equal(t, EventProfileUpdated, pub.events[0].Type)
	assert.Equal(t, "Ann", pub.events[0].Profile.Name)

	assert.Equal(t, types.FieldPhoneNumber, pub.events[1].Field)
	assert.Equal(t, "+15550100", pub.events[1].Profile.PhoneNumber)
	assert.Equal(t, "Ann", pub.events[1].Profile.Name, "full profile carried")

	assert.Equal(t, EventProfileDeleted, pub.events[2].Type)
	for _, e := range pub.events {
		assert.Equal(t, "uid-1", e.UID)
		assert.False(t, e.At.IsZero())
	}
}

func TestNotifyingStoreSkipsFailedWrites(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewNotifyingStore(memory.New(), pub, quiet)

	err := s.UpdateProfileField(context.Background(), "missing", types.FieldName, "x")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Empty(t, pub.events)
}

func TestNotifyingStorePublishFailureIsNotAWriteFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	s := NewNotifyingStore(memory.New(), pub, quiet)

	require.NoError(t, s.SaveProfile(context.Background(), "uid-1", &types.User{Name: "Ann"}))
	got, err := s.GetProfile(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
}

func TestEventRoundTrip(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{"type":"ProfileUpdated"}`))
	assert.Error(t, err, "uid is required")
	_, err = UnmarshalEvent([]byte(`{`))
	assert.Error(t, err)
}
