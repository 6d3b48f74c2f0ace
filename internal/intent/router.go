// internal/intent/router.go
package intent

import "intelliquery/internal/models"

// Route is the routed outcome of one query: which metric family to compute
// with which merged filters, or a clarification to relay to the user.
type Route struct {
	Kind                models.IntentKind
	Filters             models.Filters
	ClarificationNeeded bool
	ClarifyingQuestions []string
}

// ResolveRoute maps a classified intent to a metric family and merges in the
// previous turn's filters. Clarification short-circuits: no metrics are
// computed until the user answers.
//
// Merge rule: a filter key set by the new intent always wins; a key the new
// intent leaves unset carries forward from the immediately preceding turn.
// Keys are independent, so a new sector filter does not clear a carried date
// range. This per-key carry is the entire conversational memory.
func ResolveRoute(intent *models.Intent, previous models.Filters) Route {
	if intent.ClarificationNeeded {
		return Route{
			ClarificationNeeded: true,
			ClarifyingQuestions: intent.ClarifyingQuestions,
		}
	}
	return Route{
		Kind:    intent.Kind,
		Filters: mergeFilters(intent.Filters, previous),
	}
}

func mergeFilters(current, previous models.Filters) models.Filters {
	merged := current
	if merged.Sector == "" {
		merged.Sector = previous.Sector
	}
	if merged.Status == "" {
		merged.Status = previous.Status
	}
	if merged.Owner == "" {
		merged.Owner = previous.Owner
	}
	// The probability range and date range each carry as a unit: half-new,
	// half-old bounds would describe a range nobody asked for.
	if merged.ProbabilityMin == nil && merged.ProbabilityMax == nil {
		merged.ProbabilityMin = previous.ProbabilityMin
		merged.ProbabilityMax = previous.ProbabilityMax
	}
	if merged.DateFrom == nil && merged.DateTo == nil {
		merged.DateFrom = previous.DateFrom
		merged.DateTo = previous.DateTo
	}
	return merged
}
