// internal/intent/schema.go
package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"intelliquery/internal/common/errors"
	"intelliquery/internal/dateutil"
	"intelliquery/internal/models"
)

// intentSchema is the contract the classifier must satisfy. Any response
// outside it is a classification failure, never a crash.
var intentSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"intent_kind", "clarification_needed"},
	"properties": map[string]interface{}{
		"intent_kind": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{
				"pipeline_analysis", "revenue_analysis", "risk_assessment",
				"sector_performance", "utilization_analysis", "operational_metrics",
				"clarification",
			},
		},
		"filters": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sector":          map[string]interface{}{"type": []interface{}{"string", "null"}},
				"status":          map[string]interface{}{"type": []interface{}{"string", "null"}},
				"owner":           map[string]interface{}{"type": []interface{}{"string", "null"}},
				"probability_min": map[string]interface{}{"type": []interface{}{"number", "null"}},
				"probability_max": map[string]interface{}{"type": []interface{}{"number", "null"}},
				"date_from":       map[string]interface{}{"type": []interface{}{"string", "null"}},
				"date_to":         map[string]interface{}{"type": []interface{}{"string", "null"}},
			},
		},
		"metrics": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"clarification_needed": map[string]interface{}{"type": "boolean"},
		"clarifying_questions": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

// wireIntent is the classifier's JSON shape. Dates travel as strings and are
// parsed into typed values after schema validation.
type wireIntent struct {
	IntentKind          string      `json:"intent_kind"`
	Filters             wireFilters `json:"filters"`
	Metrics             []string    `json:"metrics"`
	ClarificationNeeded bool        `json:"clarification_needed"`
	ClarifyingQuestions []string    `json:"clarifying_questions"`
}

type wireFilters struct {
	Sector         string   `json:"sector"`
	Status         string   `json:"status"`
	Owner          string   `json:"owner"`
	ProbabilityMin *float64 `json:"probability_min"`
	ProbabilityMax *float64 `json:"probability_max"`
	DateFrom       string   `json:"date_from"`
	DateTo         string   `json:"date_to"`
}

// parseIntent validates the raw classifier payload against the contract and
// converts it to the typed intent.
func parseIntent(raw []byte) (*models.Intent, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.NewInvalidIntentShapeError(fmt.Sprintf("not valid JSON: %v", err))
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(intentSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.NewInvalidIntentShapeError(fmt.Sprintf("validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, errors.NewInvalidIntentShapeError(strings.Join(errs, "; "))
	}

	var wire wireIntent
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.NewInvalidIntentShapeError(err.Error())
	}

	filters, err := parseFilters(wire.Filters)
	if err != nil {
		return nil, err
	}

	out := &models.Intent{
		Kind:                models.IntentKind(wire.IntentKind),
		Filters:             filters,
		Metrics:             wire.Metrics,
		ClarificationNeeded: wire.ClarificationNeeded || wire.IntentKind == "clarification",
		ClarifyingQuestions: wire.ClarifyingQuestions,
	}
	if !out.ClarificationNeeded && !models.IsKnownIntentKind(out.Kind) {
		return nil, errors.NewInvalidIntentShapeError(fmt.Sprintf("unknown intent kind %q", wire.IntentKind))
	}
	return out, nil
}

func parseFilters(w wireFilters) (models.Filters, error) {
	f := models.Filters{
		Sector:         strings.TrimSpace(w.Sector),
		Status:         strings.TrimSpace(w.Status),
		Owner:          strings.TrimSpace(w.Owner),
		ProbabilityMin: w.ProbabilityMin,
		ProbabilityMax: w.ProbabilityMax,
	}
	if w.DateFrom != "" {
		t := dateutil.ParseFlexible(w.DateFrom)
		if t == nil {
			return f, errors.NewInvalidFilterFormatError(fmt.Sprintf("date_from %q is not a date", w.DateFrom))
		}
		f.DateFrom = t
	}
	if w.DateTo != "" {
		t := dateutil.ParseFlexible(w.DateTo)
		if t == nil {
			return f, errors.NewInvalidFilterFormatError(fmt.Sprintf("date_to %q is not a date", w.DateTo))
		}
		f.DateTo = t
	}
	return f, nil
}
