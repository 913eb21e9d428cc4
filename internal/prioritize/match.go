package prioritize

import (
	"fmt"
	"strings"

	"github.com/cloudsbay/tasker/internal/types"
)

// MatchMode selects how a reply is compared with task names.
type MatchMode string

const (
	// MatchExact compares the trimmed reply with each name, case-sensitively.
	MatchExact MatchMode = "exact"
	// MatchLenient also tolerates quotes, a "Task:" label, trailing
	// punctuation and case differences, as long as one task matches.
	MatchLenient MatchMode = "lenient"
)

// ParseMatchMode accepts "exact", "lenient" or "" (exact).
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchLenient:
		return MatchLenient, nil
	default:
		return "", fmt.Errorf("invalid match mode %q (want exact or lenient)", s)
	}
}

// Match returns the first task whose name equals the trimmed reply, or nil.
// In lenient mode a failed exact pass falls back to a normalized,
// case-insensitive comparison that must hit exactly one task.
func Match(mode MatchMode, reply string, tasks []*types.Task) *types.Task {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil
	}
	for _, t := range tasks {
		if t.Name == reply {
			return t
		}
	}
	if mode != MatchLenient {
		return nil
	}

	want := normalizeReply(reply)
	var found *types.Task
	for _, t := range tasks {
		if strings.EqualFold(normalizeReply(t.Name), want) {
			if found != nil {
				return nil
			}
			found = t
		}
	}
	return found
}

func normalizeReply(s string) string {
	s = strings.TrimSpace(s)
	// A reply echoing the prompt line keeps only the name.
	if i := strings.Index(s, ", Priority:"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "-* ")
	if len(s) >= 5 && strings.EqualFold(s[:5], "task:") {
		s = s[5:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!\"'`*")
	s = strings.TrimLeft(s, "\"'`*")
	return strings.TrimSpace(s)
}
