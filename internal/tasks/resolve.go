package tasks

import (
	"fmt"
	"strings"

	"github.com/cloudsbay/tasker/internal/idgen"
	"github.com/cloudsbay/tasker/internal/types"
)

// Resolve finds a task by full id, short id, or a unique id prefix.
func Resolve(list []*types.Task, ref string) (*types.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("task reference is required")
	}
	if t := types.FindByID(list, ref); t != nil {
		return t, nil
	}

	var matches []*types.Task
	for _, t := range list {
		if idgen.ShortID(t.ID) == ref || strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q is ambiguous: %d tasks match", ref, len(matches))
	}
}
