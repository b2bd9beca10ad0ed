// Package period implements the YYYY-MM accounting period, the unit of
// financial aggregation for settlements and monthly reports.
package period

import (
	"regexp"
	"time"
)

var periodPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Normalize validates a period string and returns it in canonical YYYY-MM
// form. The second return value reports whether the input was valid.
func Normalize(p string) (string, bool) {
	m := periodPattern.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2], true
}

// dateLayouts are accepted occurDate formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate parses a date-like string into UTC time.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FromDate returns the period a date belongs to, or "" for unparseable input.
func FromDate(dateLike string) string {
	t, ok := ParseDate(dateLike)
	if !ok {
		return ""
	}
	return t.Format("2006-01")
}

// Contains reports whether a date-like string falls inside the period.
func Contains(p, dateLike string) bool {
	normalized, ok := Normalize(p)
	if !ok {
		return false
	}
	return FromDate(dateLike) == normalized
}
