// Package types defines core data structures for the tasker task manager.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Task represents a single to-do item owned by one user.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Deadline    string    `json:"deadline,omitempty"` // Free text, stored as entered
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MaxNameLength bounds Task.Name.
const MaxNameLength = 500

// Validate checks if the task has valid field values.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(t.Name) > MaxNameLength {
		return fmt.Errorf("name must be %d characters or less (got %d)", MaxNameLength, len(t.Name))
	}
	if t.OwnerID == "" {
		return fmt.Errorf("owner is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	return nil
}

// SetDefaults fills the fields a freshly created task may leave empty:
//   - ID: newID() when empty
//   - CreatedAt/UpdatedAt: now when zero
//   - Priority: PriorityLow when empty
//   - Status: StatusPending when empty
func (t *Task) SetDefaults(now time.Time, newID func() string) {
	if t.ID == "" && newID != nil {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Priority == "" {
		t.Priority = PriorityLow
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
}

// IsPending reports whether the task still needs doing.
func (t *Task) IsPending() bool {
	return t.Status != StatusComplete
}

// Clone returns a shallow copy. All fields are values, so the copy is independent.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Priority is the urgency a user assigns to a task.
type Priority string

// Task priority constants
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every priority, most urgent first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// IsValid checks if the priority is one of the known values
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for display: High=0, Medium=1, Low=2.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ParsePriority maps stored or user-entered text to a Priority.
// Matching is case-insensitive and accepts a few legacy spellings.
// Unknown text yields PriorityLow and ok=false.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent", "critical", "h", "p0", "p1":
		return PriorityHigh, true
	case "medium", "normal", "med", "m", "p2":
		return PriorityMedium, true
	case "low", "l", "p3", "p4":
		return PriorityLow, true
	}
	return PriorityLow, false
}

// Status represents the lifecycle state of a task
type Status string

// Task status constants
const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusComplete:
		return true
	}
	return false
}

// ParseStatus maps stored or user-entered text to a Status.
// Unknown text yields StatusPending and ok=false.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "complete", "completed", "done", "closed":
		return StatusComplete, true
	case "pending", "open", "todo", "in progress", "in_progress":
		return StatusPending, true
	}
	return StatusPending, false
}

// User is the profile record kept for each account.
type User struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	Username          string `json:"username"`
	PhoneNumber       string `json:"phone_number"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// Clone returns an independent copy of the profile.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// ProfileField names a single mutable profile attribute.
type ProfileField string

// Mutable profile fields
const (
	FieldName              ProfileField = "name"
	FieldEmail             ProfileField = "email"
	FieldPhoneNumber       ProfileField = "phone_number"
	FieldProfilePictureURL ProfileField = "profile_picture_url"
)

// IsValid reports whether f is a known profile field.
func (f ProfileField) IsValid() bool {
	switch f {
	case FieldName, FieldEmail, FieldPhoneNumber, FieldProfilePictureURL:
		return true
	}
	return false
}

// Apply sets the named field on u.
func (f ProfileField) Apply(u *User, value string) {
	switch f {
	case FieldName:
		u.Name = value
	case FieldEmail:
		u.Email = value
	case FieldPhoneNumber:
		u.PhoneNumber = value
	case FieldProfilePictureURL:
		u.ProfilePictureURL = value
	}
}

// Account holds the credentials the authentication service keeps per user.
type Account struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
