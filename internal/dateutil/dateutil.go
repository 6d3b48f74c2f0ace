// internal/dateutil/dateutil.go
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// serialEpoch is 1899-12-30: day 1 of the spreadsheet serial convention is
// 1899-12-31, offset by one more day because the convention wrongly treats
// 1900 as a leap year. Upstream exports depend on this exact epoch.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var stringLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// SerialToTime converts a spreadsheet serial day-count to a calendar date.
func SerialToTime(serial float64) time.Time {
	return serialEpoch.AddDate(0, 0, int(serial))
}

// ParseFlexible parses a date from any of the encodings the board service
// produces: spreadsheet serial numbers (as numbers or numeric strings), ISO
// 8601 strings, DD/MM/YYYY strings, and already-typed time values. Anything
// unparseable yields nil; this function never reports an error, missingness
// accounting is the caller's job. Parsing an already-parsed value returns it
// unchanged.
func ParseFlexible(value interface{}) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return &v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		return v
	case int:
		return parseSerial(float64(v))
	case int64:
		return parseSerial(float64(v))
	case float64:
		return parseSerial(v)
	case string:
		return parseString(v)
	default:
		return nil
	}
}

func parseSerial(serial float64) *time.Time {
	if serial <= 0 {
		return nil
	}
	t := SerialToTime(serial)
	return &t
}

func parseString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Numeric strings are serial day-counts, matching upstream exports.
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return parseSerial(serial)
	}

	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Format renders a date as YYYY-MM-DD, or "" for nil.
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// MonthYear returns the month bucket label used for monthly trends,
// e.g. "Jan 2024". Nil dates bucket to "Unknown".
func MonthYear(t *time.Time) string {
	if t == nil {
		return "Unknown"
	}
	return t.Format("Jan 2006")
}

// Quarter returns the quarter label for a date, e.g. "Q1 2024".
func Quarter(t *time.Time) string {
	if t == nil {
		return "Unknown"
	}
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("Q%d %d", q, t.Year())
}

// DaysBetween returns the absolute number of days between two dates, or nil
// if either is missing.
func DaysBetween(a, b *time.Time) *int {
	if a == nil || b == nil {
		return nil
	}
	days := int(b.Sub(*a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return &days
}

// IsOverdue reports whether target is strictly before reference.
func IsOverdue(target *time.Time, reference time.Time) bool {
	if target == nil {
		return false
	}
	return target.Before(reference)
}
