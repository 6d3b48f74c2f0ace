// internal/models/intent.go
package models

import "time"

// IntentKind enumerates the metric families the classifier can route to.
type IntentKind string

const (
	IntentPipeline    IntentKind = "pipeline_analysis"
	IntentRevenue     IntentKind = "revenue_analysis"
	IntentRisk        IntentKind = "risk_assessment"
	IntentSector      IntentKind = "sector_performance"
	IntentUtilization IntentKind = "utilization_analysis"
	IntentOperational IntentKind = "operational_metrics"
)

// KnownIntentKinds lists every routable kind in stable order.
var KnownIntentKinds = []IntentKind{
	IntentPipeline,
	IntentRevenue,
	IntentRisk,
	IntentSector,
	IntentUtilization,
	IntentOperational,
}

// IsKnownIntentKind reports whether the classifier returned a routable kind.
func IsKnownIntentKind(k IntentKind) bool {
	for _, known := range KnownIntentKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Filters is the subset of data a query targets. Categorical values are
// matched case-insensitively against the normalized (lowercased) tables;
// range bounds are inclusive. Zero values mean "no filter on this key".
type Filters struct {
	Sector         string     `json:"sector,omitempty"`
	Status         string     `json:"status,omitempty"`
	Owner          string     `json:"owner,omitempty"`
	ProbabilityMin *float64   `json:"probability_min,omitempty"`
	ProbabilityMax *float64   `json:"probability_max,omitempty"`
	DateFrom       *time.Time `json:"date_from,omitempty"`
	DateTo         *time.Time `json:"date_to,omitempty"`
}

// IsZero reports whether no filter key is set.
func (f Filters) IsZero() bool {
	return f.Sector == "" && f.Status == "" && f.Owner == "" &&
		f.ProbabilityMin == nil && f.ProbabilityMax == nil &&
		f.DateFrom == nil && f.DateTo == nil
}

// Intent is the structured interpretation of one natural-language query,
// produced by the external classification call. Immutable once parsed; the
// router may merge it with the previous turn's filters for follow-ups.
type Intent struct {
	Kind                IntentKind `json:"intent_kind"`
	Filters             Filters    `json:"filters"`
	Metrics             []string   `json:"metrics,omitempty"`
	ClarificationNeeded bool       `json:"clarification_needed"`
	ClarifyingQuestions []string   `json:"clarifying_questions,omitempty"`
}
