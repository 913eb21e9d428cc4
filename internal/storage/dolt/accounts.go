package dolt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isDuplicateKey reports a MySQL unique-constraint violation (error 1062).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "duplicate")
}

// CreateAccount inserts a new credential row. Emails are unique regardless of case.
func (s *DoltStore) CreateAccount(ctx context.Context, acct *types.Account) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if acct == nil || acct.UID == "" {
		return fmt.Errorf("account uid is required")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO accounts (uid, email, email_key, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		acct.UID, acct.Email, emailKey(acct.Email), acct.PasswordHash,
		acct.CreatedAt.UTC(), acct.UpdatedAt.UTC())
	if isDuplicateKey(err) {
		return fmt.Errorf("account %s: %w", acct.Email, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount returns the account for uid
func (s *DoltStore) GetAccount(ctx context.Context, uid string) (*types.Account, error) {
	return s.getAccount(ctx, "uid = ?", uid)
}

// GetAccountByEmail looks an account up by case-insensitive email
func (s *DoltStore) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	return s.getAccount(ctx, "email_key = ?", emailKey(email))
}

func (s *DoltStore) getAccount(ctx context.Context, where string, arg string) (*types.Account, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var a types.Account
	err = db.QueryRowContext(ctx,
		`SELECT uid, email, password_hash, created_at, updated_at FROM accounts WHERE `+where, arg, //nolint:gosec // G202: where is a constant
	).Scan(&a.UID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// UpdateAccountEmail changes the sign-in email
func (s *DoltStore) UpdateAccountEmail(ctx context.Context, uid, email string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET email = ?, email_key = ?, updated_at = ? WHERE uid = ?`,
		email, emailKey(email), time.Now().UTC(), uid)
	if isDuplicateKey(err) {
		return fmt.Errorf("account %s: %w", email, storage.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to update account email: %w", err)
	}
	return requireRow(ctx, db, res, "accounts", uid)
}

// UpdatePasswordHash replaces the stored bcrypt hash
func (s *DoltStore) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE uid = ?`,
		hash, time.Now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRow(ctx, db, res, "accounts", uid)
}

// DeleteAccount removes the credential row for uid
func (s *DoltStore) DeleteAccount(ctx context.Context, uid string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return requireRow(ctx, db, res, "accounts", uid)
}
