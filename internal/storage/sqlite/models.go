package sqlite

import (
	"time"

	"github.com/cloudsbay/tasker/internal/types"
)

// taskRow is the gorm model for the tasks table.
type taskRow struct {
	ID          string    `gorm:"primarykey;size:64"`
	Name        string    `gorm:"size:500;not null"`
	Description string    `gorm:"type:text"`
	Deadline    string    `gorm:"size:255"`
	Priority    string    `gorm:"size:32;not null;default:Low"`
	Status      string    `gorm:"size:32;not null;default:Pending"`
	OwnerID     string    `gorm:"size:64;not null;index:idx_tasks_owner_created,priority:1"`
	CreatedAt   time.Time `gorm:"index:idx_tasks_owner_created,priority:2"`
	UpdatedAt   time.Time
}

// TableName returns the table name for taskRow.
func (taskRow) TableName() string { return "tasks" }

func taskToRow(t *types.Task) *taskRow {
	return &taskRow{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Deadline:    t.Deadline,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r *taskRow) toTask() *types.Task {
	p, _ := types.ParsePriority(r.Priority)
	s, _ := types.ParseStatus(r.Status)
	return &types.Task{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Deadline:    r.Deadline,
		Priority:    p,
		Status:      s,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

// profileRow is the gorm model for the users table.
type profileRow struct {
	UID               string `gorm:"primarykey;size:64"`
	Email             string `gorm:"size:255"`
	Name              string `gorm:"size:255"`
	Username          string `gorm:"size:255"`
	PhoneNumber       string `gorm:"size:64"`
	ProfilePictureURL string `gorm:"size:1024"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName returns the table name for profileRow.
func (profileRow) TableName() string { return "users" }

func (r *profileRow) toUser() *types.User {
	return &types.User{
		Email:             r.Email,
		Name:              r.Name,
		Username:          r.Username,
		PhoneNumber:       r.PhoneNumber,
		ProfilePictureURL: r.ProfilePictureURL,
	}
}

// accountRow is the gorm model for the accounts table. EmailKey holds the
// lower-cased email so uniqueness is case-insensitive.
type accountRow struct {
	UID          string `gorm:"primarykey;size:64"`
	Email        string `gorm:"size:255;not null"`
	EmailKey     string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for accountRow.
func (accountRow) TableName() string { return "accounts" }

func (r *accountRow) toAccount() *types.Account {
	return &types.Account{
		UID:          r.UID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}
