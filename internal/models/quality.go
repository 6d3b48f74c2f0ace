// internal/models/quality.go
package models

import "fmt"

// Quality issue categories.
const (
	QualityMissing   = "missing"
	QualityDuplicate = "duplicate"
	QualityUnmatched = "unmatched"
	QualityOrphan    = "orphan"
)

// Quality issue severities, derived from the affected fraction.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// QualityIssue is a structured record of a detected data-completeness or
// consistency problem. Issues are accumulated per analysis run, always
// surfaced to the caller, and never persisted across runs.
type QualityIssue struct {
	Category      string `json:"category"`
	Field         string `json:"field"`
	Board         Board  `json:"board"`
	CountAffected int    `json:"count_affected"`
	TotalCount    int    `json:"total_count"`
	Severity      string `json:"severity"`
}

// NewQualityIssue builds an issue with severity derived from the affected
// fraction: >=25% high, >=10% medium, else low.
func NewQualityIssue(category, field string, board Board, affected, total int) QualityIssue {
	return QualityIssue{
		Category:      category,
		Field:         field,
		Board:         board,
		CountAffected: affected,
		TotalCount:    total,
		Severity:      severityFor(affected, total),
	}
}

func severityFor(affected, total int) string {
	if total <= 0 {
		return SeverityLow
	}
	frac := float64(affected) / float64(total)
	switch {
	case frac >= 0.25:
		return SeverityHigh
	case frac >= 0.10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Percentage returns the affected fraction as a percentage.
func (q QualityIssue) Percentage() float64 {
	if q.TotalCount <= 0 {
		return 0
	}
	return float64(q.CountAffected) / float64(q.TotalCount) * 100
}

// Describe renders a one-line human-readable summary for quality reports.
func (q QualityIssue) Describe() string {
	switch q.Category {
	case QualityDuplicate:
		return fmt.Sprintf("%s: %d duplicate %s group(s) across %d records", q.Board, q.CountAffected, q.Field, q.TotalCount)
	case QualityUnmatched:
		return fmt.Sprintf("%s: %d of %d deals have no matching work orders (%.1f%%)", q.Board, q.CountAffected, q.TotalCount, q.Percentage())
	case QualityOrphan:
		return fmt.Sprintf("%s: %d of %d orders reference no known deal (%.1f%%)", q.Board, q.CountAffected, q.TotalCount, q.Percentage())
	default:
		return fmt.Sprintf("%s: %s %.1f%% missing (%d of %d records)", q.Board, q.Field, q.Percentage(), q.CountAffected, q.TotalCount)
	}
}
