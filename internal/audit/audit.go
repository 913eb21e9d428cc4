// Package audit appends prioritization calls to an append-only JSONL log
// (audit.jsonl under the data directory). Entries are never rewritten; a
// later entry refers to an earlier one through ParentID.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the log file created inside the audit directory.
const FileName = "audit.jsonl"

// Entry kinds.
const (
	KindLLMCall = "llm_call"
	KindLabel   = "label"
)

// Entry is one line of the audit log.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Actor     string    `json:"actor,omitempty"`

	// LLM call fields
	Model     string `json:"model,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Response  string `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	TaskCount int    `json:"task_count,omitempty"`
	Matched   string `json:"matched,omitempty"`

	// Label fields
	ParentID string `json:"parent_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

var mu sync.Mutex

// Append writes e to dir/audit.jsonl, filling ID and CreatedAt when empty,
// and returns the entry ID.
func Append(dir string, e *Entry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("audit entry is nil")
	}
	if e.Kind == "" {
		return "", fmt.Errorf("audit entry kind is required")
	}
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	line, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit entry: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 - dir is the configured data dir
	if err != nil {
		return "", fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return "", fmt.Errorf("failed to write audit log: %w", err)
	}
	return e.ID, nil
}
