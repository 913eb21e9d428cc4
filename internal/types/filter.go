package types

import "sort"

// FilterByOwner returns the tasks whose OwnerID equals owner, preserving order.
func FilterByOwner(tasks []*Task, owner string) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil && t.OwnerID == owner {
			out = append(out, t)
		}
	}
	return out
}

// Pending returns the tasks that are not Complete, preserving order.
func Pending(tasks []*Task) []*Task {
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil && t.IsPending() {
			out = append(out, t)
		}
	}
	return out
}

// FindByID returns the task with the given id, or nil.
func FindByID(tasks []*Task, id string) *Task {
	for _, t := range tasks {
		if t != nil && t.ID == id {
			return t
		}
	}
	return nil
}

// SortForDisplay orders tasks pending-first, then by priority rank, then by
// creation time. The input slice is not modified.
func SortForDisplay(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPending() != b.IsPending() {
			return a.IsPending()
		}
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}
