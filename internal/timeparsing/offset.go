// Package timeparsing turns user-entered deadlines into dates.
//
// ParseRelativeTime tries, in order: an offset such as +3d or 2w, an
// absolute date (YYYY-MM-DD or RFC3339), then English phrases such as
// "next friday". Anything else is kept by callers as free text.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var offsetRe = regexp.MustCompile(`^([+-]?)(\d{1,6})([hdwmy])$`)

// offsetUnits shifts t by n of the unit.
var offsetUnits = map[string]func(t time.Time, n int) time.Time{
	"h": func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * time.Hour) },
	"d": func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) },
	"w": func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) },
	"m": func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) },
	"y": func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) },
}

// IsOffset reports whether s is a signed offset like +6h, -1d or 3m.
func IsOffset(s string) bool {
	return offsetRe.MatchString(s)
}

// ParseOffset applies an offset to now. Units are h(ours), d(ays),
// w(eeks), m(onths) and y(ears); no sign means forward.
func ParseOffset(s string, now time.Time) (time.Time, error) {
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("not an offset: %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("offset %q: %w", s, err)
	}
	if m[1] == "-" {
		n = -n
	}
	return offsetUnits[m[3]](now, n), nil
}
