package timeparsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// DateLayout is the canonical deadline format.
const DateLayout = "2006-01-02"

var nlp = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseNaturalLanguage parses English expressions such as "tomorrow",
// "next monday at 2pm", "in 3 days" or "3 days ago" relative to now.
// Input where the recognised phrase covers less than half the text is
// rejected, so free text that merely contains a date word stays free text.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	r, err := nlp.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil || 2*len(strings.TrimSpace(r.Text)) < len(s) {
		return time.Time{}, fmt.Errorf("not a natural language time: %q", s)
	}
	return r.Time, nil
}

// ParseRelativeTime tries each layer in turn.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if IsOffset(s) {
		return ParseOffset(s, now)
	}
	if t, err := time.ParseInLocation(DateLayout, s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := ParseNaturalLanguage(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression: %q", s)
	}
	return t, nil
}

// NormalizeDeadline returns the deadline as YYYY-MM-DD when s is a
// recognised expression, and s unchanged otherwise. ok reports whether s
// was recognised.
func NormalizeDeadline(s string, now time.Time) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return s, false
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return s, false
	}
	return t.Format(DateLayout), true
}
