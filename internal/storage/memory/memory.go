// Package memory implements storage.Storage in process memory. It backs the
// "memory" storage backend and the coordinator tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// MemoryStorage keeps every record in maps guarded by one mutex.
// Stored values are copied on the way in and out.
type MemoryStorage struct {
	mu       sync.RWMutex
	tasks    map[string]*types.Task
	profiles map[string]*types.User
	accounts map[string]*types.Account
	closed   bool
}

// New creates an empty in-memory store.
func New() *MemoryStorage {
	return &MemoryStorage{
		tasks:    make(map[string]*types.Task),
		profiles: make(map[string]*types.User),
		accounts: make(map[string]*types.Account),
	}
}

var _ storage.Storage = (*MemoryStorage)(nil)

func (m *MemoryStorage) checkOpen() error {
	if m.closed {
		return fmt.Errorf("memory store is closed")
	}
	return nil
}

// SaveTask upserts a task by ID
func (m *MemoryStorage) SaveTask(ctx context.Context, task *types.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.tasks[task.ID] = task.Clone()
	return nil
}

// ListTasks returns the owner's tasks ordered by creation time, then id
func (m *MemoryStorage) ListTasks(ctx context.Context, ownerID string) ([]*types.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]*types.Task, 0)
	for _, t := range m.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetProfile returns the profile for uid
func (m *MemoryStorage) GetProfile(ctx context.Context, uid string) (*types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	u, ok := m.profiles[uid]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	return u.Clone(), nil
}

// SaveProfile creates or replaces the profile for uid
func (m *MemoryStorage) SaveProfile(ctx context.Context, uid string, user *types.User) error {
	if uid == "" || user == nil {
		return fmt.Errorf("uid and profile are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.profiles[uid] = user.Clone()
	return nil
}

// UpdateProfileField sets a single profile attribute
func (m *MemoryStorage) UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error {
	if !field.IsValid() {
		return fmt.Errorf("unknown profile field %q", field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	u, ok := m.profiles[uid]
	if !ok {
		return fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	field.Apply(u, value)
	return nil
}

// DeleteProfile removes the profile for uid
func (m *MemoryStorage) DeleteProfile(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.profiles[uid]; !ok {
		return fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	delete(m.profiles, uid)
	return nil
}

// CreateAccount stores new credentials; email must be unused
func (m *MemoryStorage) CreateAccount(ctx context.Context, acct *types.Account) error {
	if acct == nil || acct.UID == "" {
		return fmt.Errorf("account uid is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.accounts[acct.UID]; ok {
		return fmt.Errorf("account %s: %w", acct.UID, storage.ErrAlreadyExists)
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, acct.Email) {
			return fmt.Errorf("email %s: %w", acct.Email, storage.ErrAlreadyExists)
		}
	}
	c := *acct
	m.accounts[acct.UID] = &c
	return nil
}

// GetAccount returns the account for uid
func (m *MemoryStorage) GetAccount(ctx context.Context, uid string) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	a, ok := m.accounts[uid]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	c := *a
	return &c, nil
}

// GetAccountByEmail looks an account up by case-insensitive email
func (m *MemoryStorage) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", email, storage.ErrNotFound)
}

// UpdateAccountEmail changes the sign-in email
func (m *MemoryStorage) UpdateAccountEmail(ctx context.Context, uid, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	a, ok := m.accounts[uid]
	if !ok {
		return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	for id, other := range m.accounts {
		if id != uid && strings.EqualFold(other.Email, email) {
			return fmt.Errorf("email %s: %w", email, storage.ErrAlreadyExists)
		}
	}
	a.Email = email
	return nil
}

// UpdatePasswordHash replaces the stored bcrypt hash
func (m *MemoryStorage) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	a, ok := m.accounts[uid]
	if !ok {
		return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	a.PasswordHash = hash
	return nil
}

// DeleteAccount removes credentials for uid
func (m *MemoryStorage) DeleteAccount(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, ok := m.accounts[uid]; !ok {
		return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	delete(m.accounts, uid)
	return nil
}

// Close marks the store closed; further calls fail.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
