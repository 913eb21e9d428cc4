package prioritize

import (
	"testing"

	"github.com/cloudsbay/tasker/internal/types"
)

func TestMatch(t *testing.T) {
	tasks := []*types.Task{
		{ID: "1", Name: "Pay bills"},
		{ID: "2", Name: "Read book"},
		{ID: "3", Name: "Pay bills"},
		{ID: "4", Name: "call mom"},
		{ID: "5", Name: "Call Mom"},
	}

	tests := []struct {
		name  string
		mode  MatchMode
		reply string
		want  string
	}{
		{"exact", MatchExact, "Read book", "2"},
		{"first match wins", MatchExact, "Pay bills", "1"},
		{"whitespace trimmed", MatchExact, "\t Read book \n", "2"},
		{"case sensitive", MatchExact, "read book", ""},
		{"punctuation not stripped", MatchExact, "Read book.", ""},
		{"empty", MatchExact, "   ", ""},
		{"lenient case", MatchLenient, "read book", "2"},
		{"lenient quotes and period", MatchLenient, `"Read book".`, "2"},
		{"lenient label", MatchLenient, "Task: Read book", "2"},
		{"lenient echoed line", MatchLenient, "- Task: Read book, Priority: Low, Deadline: 2025-08-01", "2"},
		{"lenient ambiguous", MatchLenient, "CALL MOM", ""},
		{"lenient exact still preferred", MatchLenient, "Call Mom", "5"},
		{"lenient unknown", MatchLenient, "Water plants", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.mode, tt.reply, tasks)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.want {
				t.Errorf("Match(%s, %q) = %q, want %q", tt.mode, tt.reply, gotID, tt.want)
			}
		})
	}
}

func TestParseMatchMode(t *testing.T) {
	for in, want := range map[string]MatchMode{"": MatchExact, "exact": MatchExact, " Lenient ": MatchLenient} {
		got, err := ParseMatchMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMatchMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMatchMode("fuzzy"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
