// Package teststore provides a backend-agnostic conformance suite for
// storage.Storage implementations.
//
// Every backend test calls Run with a constructor that returns a fresh,
// empty store:
//
//	func TestConformance(t *testing.T) {
//	    teststore.Run(t, func(t *testing.T) storage.Storage { return memory.New() })
//	}
package teststore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// Factory returns a fresh empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Storage

// base is a fixed, second-aligned timestamp so backends that truncate
// sub-second precision still compare equal.
var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// NewTask builds a valid task for owner.
func NewTask(id, owner, name string, offset time.Duration) *types.Task {
	return &types.Task{
		ID:        id,
		Name:      name,
		Deadline:  "2025-07-01",
		Priority:  types.PriorityMedium,
		Status:    types.StatusPending,
		OwnerID:   owner,
		CreatedAt: base.Add(offset),
		UpdatedAt: base.Add(offset),
	}
}

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndListTasks", func(t *testing.T) { testSaveAndList(t, newStore(t)) })
	t.Run("SaveTaskUpserts", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("ListTasksScopedToOwner", func(t *testing.T) { testOwnerScope(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
}

func testSaveAndList(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	second := NewTask("t-2", "owner-a", "Read book", time.Minute)
	first := NewTask("t-1", "owner-a", "Pay bills", 0)
	first.Description = "electricity and water"
	first.Priority = types.PriorityHigh

	require.NoError(t, s.SaveTask(ctx, second))
	require.NoError(t, s.SaveTask(ctx, first))

	got, err := s.ListTasks(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "t-1", got[0].ID, "ordered by creation time")
	assert.Equal(t, "t-2", got[1].ID)
	assert.Equal(t, "Pay bills", got[0].Name)
	assert.Equal(t, "electricity and water", got[0].Description)
	assert.Equal(t, "2025-07-01", got[0].Deadline)
	assert.Equal(t, types.PriorityHigh, got[0].Priority)
	assert.Equal(t, types.StatusPending, got[0].Status)
	assert.True(t, got[0].CreatedAt.Equal(first.CreatedAt), "created_at round-trips")
}

func testUpsert(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	task := NewTask("t-1", "owner-a", "Pay bills", 0)
	require.NoError(t, s.SaveTask(ctx, task))

	done := task.Clone()
	done.Status = types.StatusComplete
	done.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.SaveTask(ctx, done))

	got, err := s.ListTasks(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.StatusComplete, got[0].Status)
	assert.True(t, got[0].UpdatedAt.Equal(done.UpdatedAt))
	assert.True(t, got[0].CreatedAt.Equal(task.CreatedAt), "created_at unchanged by upsert")
	assert.Equal(t, types.StatusPending, task.Status, "caller's value untouched")
}

func testOwnerScope(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	require.NoError(t, s.SaveTask(ctx, NewTask("a-1", "owner-a", "mine", 0)))
	require.NoError(t, s.SaveTask(ctx, NewTask("b-1", "owner-b", "theirs", 0)))

	got, err := s.ListTasks(ctx, "owner-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a-1", got[0].ID)

	none, err := s.ListTasks(ctx, "owner-c")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testProfiles(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "uid-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "missing profile: %v", err)

	user := &types.User{Email: "ann@example.com", Name: "Ann", Username: "ann", PhoneNumber: "+15550100"}
	require.NoError(t, s.SaveProfile(ctx, "uid-1", user))

	got, err := s.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	require.NoError(t, s.UpdateProfileField(ctx, "uid-1", types.FieldName, "Ann Lee"))
	require.NoError(t, s.UpdateProfileField(ctx, "uid-1", types.FieldProfilePictureURL, "nats://profile_pictures/uid-1.jpg"))
	got, err = s.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", got.Name)
	assert.Equal(t, "nats://profile_pictures/uid-1.jpg", got.ProfilePictureURL)
	assert.Equal(t, "ann@example.com", got.Email, "other fields untouched")

	err = s.UpdateProfileField(ctx, "uid-missing", types.FieldName, "x")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "update missing: %v", err)

	require.NoError(t, s.DeleteProfile(ctx, "uid-1"))
	_, err = s.GetProfile(ctx, "uid-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testAccounts(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	acct := &types.Account{UID: "uid-1", Email: "ann@example.com", PasswordHash: "hash-1", CreatedAt: base, UpdatedAt: base}
	require.NoError(t, s.CreateAccount(ctx, acct))

	dup := &types.Account{UID: "uid-2", Email: "ANN@example.com", PasswordHash: "hash-2", CreatedAt: base, UpdatedAt: base}
	err := s.CreateAccount(ctx, dup)
	assert.True(t, errors.Is(err, storage.ErrAlreadyExists), "duplicate email: %v", err)

	got, err := s.GetAccountByEmail(ctx, "Ann@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, "hash-1", got.PasswordHash)

	require.NoError(t, s.UpdatePasswordHash(ctx, "uid-1", "hash-new"))
	require.NoError(t, s.UpdateAccountEmail(ctx, "uid-1", "ann.lee@example.com"))
	got, err = s.GetAccount(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-new", got.PasswordHash)
	assert.Equal(t, "ann.lee@example.com", got.Email)

	require.NoError(t, s.DeleteAccount(ctx, "uid-1"))
	_, err = s.GetAccount(ctx, "uid-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	err = s.DeleteAccount(ctx, "uid-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
