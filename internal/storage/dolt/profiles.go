package dolt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

// profileColumn maps a ProfileField to its column. Only these names are
// ever interpolated into SQL.
var profileColumn = map[types.ProfileField]string{
	types.FieldName:              "name",
	types.FieldEmail:             "email",
	types.FieldPhoneNumber:       "phone_number",
	types.FieldProfilePictureURL: "profile_picture_url",
}

// GetProfile returns the profile for uid
func (s *DoltStore) GetProfile(ctx context.Context, uid string) (*types.User, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var u types.User
	err = db.QueryRowContext(ctx,
		`SELECT email, name, username, phone_number, profile_picture_url FROM users WHERE uid = ?`, uid,
	).Scan(&u.Email, &u.Name, &u.Username, &u.PhoneNumber, &u.ProfilePictureURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", uid, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &u, nil
}

// SaveProfile creates or replaces the profile for uid
func (s *DoltStore) SaveProfile(ctx context.Context, uid string, user *types.User) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if uid == "" || user == nil {
		return fmt.Errorf("uid and profile are required")
	}
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO users (uid, email, name, username, phone_number, profile_picture_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			email = VALUES(email),
			name = VALUES(name),
			username = VALUES(username),
			phone_number = VALUES(phone_number),
			profile_picture_url = VALUES(profile_picture_url),
			updated_at = VALUES(updated_at)`,
		uid, user.Email, user.Name, user.Username, user.PhoneNumber, user.ProfilePictureURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// UpdateProfileField sets one profile column
func (s *DoltStore) UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	col, ok := profileColumn[field]
	if !ok {
		return fmt.Errorf("unknown profile field %q", field)
	}
	res, err := db.ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s = ?, updated_at = ? WHERE uid = ?", col), //nolint:gosec // G201: col from fixed map
		value, time.Now().UTC(), uid)
	if err != nil {
		return fmt.Errorf("failed to update profile %s: %w", field, err)
	}
	return requireRow(ctx, db, res, "users", uid)
}

// DeleteProfile removes the profile for uid
func (s *DoltStore) DeleteProfile(ctx context.Context, uid string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return requireRow(ctx, db, res, "users", uid)
}

// requireRow maps a zero-row update to storage.ErrNotFound. MySQL counts
// changed rows, not matched ones, so a zero count is confirmed against the
// table before reporting the row missing.
func requireRow(ctx context.Context, db *sql.DB, res sql.Result, table, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE uid = ?", table), key).Scan(&one) //nolint:gosec // G201: table is a constant
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", table, key, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", table, key, err)
	}
	return nil
}
