// internal/normalizer/clean.go
package normalizer

import (
	"strconv"
	"strings"
	"time"

	"intelliquery/internal/dateutil"
	"intelliquery/internal/models"
)

// Representative probabilities for boards that use categorical labels
// instead of numbers. Numeric column values take precedence.
var probabilityByLabel = map[string]float64{
	"high":   70,
	"medium": 40,
	"med":    40,
	"low":    20,
}

// CleanText trims whitespace. Empty after trimming means missing.
func CleanText(s string) string {
	return strings.TrimSpace(s)
}

// CleanCategory lowercases and trims so that "Mining", " mining " and
// "MINING" group together in breakdowns.
func CleanCategory(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanNumber parses a numeric column value, tolerating currency symbols,
// thousands separators and percent signs. Returns nil when no number can
// be recovered, never zero.
func CleanNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', '₹', '%', ' ':
			return -1
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// CleanProbability parses a probability column into the 0-100 range. Accepts
// plain numbers, percent strings and the categorical labels some boards use.
func CleanProbability(s string) *float64 {
	if v := CleanNumber(s); v != nil {
		if *v < 0 || *v > 100 {
			return nil
		}
		return v
	}
	if v, ok := probabilityByLabel[CleanCategory(s)]; ok {
		return models.Ptr(v)
	}
	return nil
}

// CleanDate parses a date column value. Board exports mix ISO strings and
// spreadsheet serial numbers; both are accepted.
func CleanDate(s string) *time.Time {
	return dateutil.ParseFlexible(s)
}
