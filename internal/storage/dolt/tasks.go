package dolt

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudsbay/tasker/internal/types"
)

const taskColumns = "id, name, description, deadline, priority, status, owner_id, created_at, updated_at"

// SaveTask upserts a task by id. The last writer wins.
func (s *DoltStore) SaveTask(ctx context.Context, task *types.Task) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if task == nil || task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			description = VALUES(description),
			deadline = VALUES(deadline),
			priority = VALUES(priority),
			status = VALUES(status),
			owner_id = VALUES(owner_id),
			updated_at = VALUES(updated_at)`,
		task.ID, task.Name, task.Description, task.Deadline,
		string(task.Priority), string(task.Status), task.OwnerID,
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns the owner's tasks ordered by creation time, then id.
func (s *DoltStore) ListTasks(ctx context.Context, ownerID string) ([]*types.Task, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = ? ORDER BY created_at ASC, id ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*types.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// scanTask reads one tasks row. Priority and status go through the
// parse-with-fallback helpers so rows written by older clients still load.
func scanTask(rows *sql.Rows) (*types.Task, error) {
	var (
		t                types.Task
		description      sql.NullString
		priority, status string
	)
	if err := rows.Scan(&t.ID, &t.Name, &description, &t.Deadline, &priority, &status,
		&t.OwnerID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.Description = description.String
	t.Priority, _ = types.ParsePriority(priority)
	t.Status, _ = types.ParseStatus(status)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
