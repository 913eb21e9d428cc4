// Package sqlite implements storage.Storage on a local SQLite file through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// Store is a gorm-backed storage.Storage.
type Store struct {
	db   *gorm.DB
	path string
}

var _ storage.Storage = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+pragmas(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite is single-writer; one connection also keeps ":memory:" coherent.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(&taskRow{}, &profileRow{}, &accountRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func pragmas(path string) string {
	if path == ":memory:" {
		return ""
	}
	return "?_busy_timeout=5000&_journal_mode=WAL"
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTask upserts a task; every column is overwritten on conflict.
func (s *Store) SaveTask(ctx context.Context, task *types.Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	row := taskToRow(task)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "deadline", "priority", "status", "owner_id", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns the owner's tasks ordered by creation time, then id.
func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]*types.Task, error) {
	var rows []*taskRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	out := make([]*types.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTask())
	}
	return out, nil
}

// GetProfile returns the profile for uid.
func (s *Store) GetProfile(ctx context.Context, uid string) (*types.User, error) {
	var row profileRow
	if err := s.db.WithContext(ctx).First(&row, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return row.toUser(), nil
}

// SaveProfile creates or replaces the profile for uid.
func (s *Store) SaveProfile(ctx context.Context, uid string, user *types.User) error {
	if uid == "" || user == nil {
		return fmt.Errorf("uid and profile are required")
	}
	row := &profileRow{
		UID:               uid,
		Email:             user.Email,
		Name:              user.Name,
		Username:          user.Username,
		PhoneNumber:       user.PhoneNumber,
		ProfilePictureURL: user.ProfilePictureURL,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "username", "phone_number", "profile_picture_url", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// UpdateProfileField sets a single profile column.
func (s *Store) UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error {
	if !field.IsValid() {
		return fmt.Errorf("unknown profile field %q", field)
	}
	result := s.db.WithContext(ctx).Model(&profileRow{}).Where("uid = ?", uid).Update(string(field), value)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update profile %s: %w", field, err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	return nil
}

// DeleteProfile removes the profile for uid.
func (s *Store) DeleteProfile(ctx context.Context, uid string) error {
	result := s.db.WithContext(ctx).Delete(&profileRow{}, "uid = ?", uid)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	return nil
}

// CreateAccount stores new credentials; the email must be unused.
func (s *Store) CreateAccount(ctx context.Context, acct *types.Account) error {
	if acct == nil || acct.UID == "" {
		return fmt.Errorf("account uid is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&accountRow{}).
			Where("uid = ? OR email_key = ?", acct.UID, emailKey(acct.Email)).
			Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check account: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("account %s: %w", acct.Email, storage.ErrAlreadyExists)
		}
		row := &accountRow{
			UID:          acct.UID,
			Email:        acct.Email,
			EmailKey:     emailKey(acct.Email),
			PasswordHash: acct.PasswordHash,
			CreatedAt:    acct.CreatedAt.UTC(),
			UpdatedAt:    acct.UpdatedAt.UTC(),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
}

// GetAccount returns the account for uid.
func (s *Store) GetAccount(ctx context.Context, uid string) (*types.Account, error) {
	return s.findAccount(ctx, "uid = ?", uid)
}

// GetAccountByEmail looks an account up by case-insensitive email.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	return s.findAccount(ctx, "email_key = ?", emailKey(email))
}

func (s *Store) findAccount(ctx context.Context, query string, arg string) (*types.Account, error) {
	var row accountRow
	if err := s.db.WithContext(ctx).First(&row, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", arg, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return row.toAccount(), nil
}

// UpdateAccountEmail changes the sign-in email.
func (s *Store) UpdateAccountEmail(ctx context.Context, uid, email string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&accountRow{}).
			Where("email_key = ? AND uid <> ?", emailKey(email), uid).
			Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("email %s: %w", email, storage.ErrAlreadyExists)
		}
		result := tx.Model(&accountRow{}).Where("uid = ?", uid).
			Updates(map[string]interface{}{"email": email, "email_key": emailKey(email)})
		if result.Error != nil {
			return fmt.Errorf("failed to update email: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
		}
		return nil
	})
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	result := s.db.WithContext(ctx).Model(&accountRow{}).Where("uid = ?", uid).Update("password_hash", hash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	return nil
}

// DeleteAccount removes credentials for uid.
func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	result := s.db.WithContext(ctx).Delete(&accountRow{}, "uid = ?", uid)
	if result.Error != nil {
		return fmt.Errorf("failed to delete account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", uid, storage.ErrNotFound)
	}
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
