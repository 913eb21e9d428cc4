// Package storage defines the persistence interfaces for tasks, profiles and
// account credentials.
//
// Concrete backends live in sub-packages: dolt (embedded or sql-server),
// sqlite (gorm) and memory. Consumers depend on the narrow interfaces here
// so fakes and decorators (telemetry, event publishing) can be swapped in.
package storage

import (
	"context"
	"errors"

	"github.com/cloudsbay/tasker/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when creating an entity whose key is taken.
var ErrAlreadyExists = errors.New("already exists")

// TaskStore persists tasks.
type TaskStore interface {
	// SaveTask upserts the task by ID. Concurrent saves of the same ID are
	// last-write-wins.
	SaveTask(ctx context.Context, task *types.Task) error

	// ListTasks returns the tasks owned by ownerID ordered by creation time.
	// Callers still filter by owner before presenting results.
	ListTasks(ctx context.Context, ownerID string) ([]*types.Task, error)
}

// ProfileStore persists one user profile per account UID.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*types.User, error)
	SaveProfile(ctx context.Context, uid string, user *types.User) error
	UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error
	DeleteProfile(ctx context.Context, uid string) error
}

// AccountStore persists authentication credentials.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *types.Account) error
	GetAccount(ctx context.Context, uid string) (*types.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*types.Account, error)
	UpdateAccountEmail(ctx context.Context, uid, email string) error
	UpdatePasswordHash(ctx context.Context, uid, hash string) error
	DeleteAccount(ctx context.Context, uid string) error
}

// Storage is the full backend surface.
type Storage interface {
	TaskStore
	ProfileStore
	AccountStore

	Close() error
}
