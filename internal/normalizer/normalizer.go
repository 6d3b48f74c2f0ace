// internal/normalizer/normalizer.go

// Package normalizer converts raw board records into the canonical row
// shapes, tracking quality issues as it goes. Rows are never dropped for
// missing data; missingness is flagged and reported instead.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/common/metrics"
	"intelliquery/internal/models"
	"intelliquery/pkg/boardschema"
)

// Normalizer applies a schema registry to raw board items.
type Normalizer struct {
	registry         *boardschema.Registry
	missingReportPct float64
	logger           logger.Logger
}

// New builds a Normalizer. The registry is validated up front so that a
// misconfigured field mapping fails at startup, not mid-analysis.
func New(registry *boardschema.Registry, missingReportPct float64, log logger.Logger) (*Normalizer, error) {
	if registry == nil {
		return nil, errors.NewInvalidSchemaError("registry is nil")
	}
	if err := registry.Validate(); err != nil {
		return nil, errors.NewInvalidSchemaError(err.Error())
	}
	if missingReportPct <= 0 {
		missingReportPct = 0.10
	}
	return &Normalizer{
		registry:         registry,
		missingReportPct: missingReportPct,
		logger:           log.WithFields(map[string]interface{}{"component": "normalizer"}),
	}, nil
}

// NormalizeDeals converts raw deal items into canonical rows. The returned
// issues cover per-field missingness above the report threshold and duplicate
// business keys. Duplicate rows are kept: downstream joins must see them.
func (n *Normalizer) NormalizeDeals(items []models.RawItem) ([]models.Deal, []models.QualityIssue, error) {
	n.logger.Info("normalizing deal records", map[string]interface{}{"count": len(items)})

	tracker := newFieldTracker(n.registry.Deals.Fields)
	deals := make([]models.Deal, 0, len(items))

	for _, item := range items {
		values := tracker.extract(item)

		d := models.Deal{
			ItemID:     item.ID,
			DealCode:   CleanText(values["deal_code"]),
			ClientCode: CleanText(values["client_code"]),
			OwnerCode:  CleanText(values["owner_code"]),
			Sector:     CleanCategory(values["sector"]),
			Status:     CleanCategory(values["status"]),
			Stage:      CleanCategory(values["stage"]),
		}
		d.Probability = CleanProbability(values["probability"])
		d.DealValue = CleanNumber(values["deal_value"])
		d.CloseDate = CleanDate(values["close_date"])
		d.CreatedDate = CleanDate(values["created_date"])

		if d.DealCode == "" {
			d.Flags = append(d.Flags, models.FlagMissingKey)
		}
		if d.DealValue == nil || d.Probability == nil {
			d.Flags = append(d.Flags, models.FlagMissingValue)
		}
		if d.CloseDate == nil || d.CreatedDate == nil {
			d.Flags = append(d.Flags, models.FlagMissingDate)
		}

		tracker.observe(map[string]bool{
			"deal_code":    d.DealCode != "",
			"client_code":  d.ClientCode != "",
			"owner_code":   d.OwnerCode != "",
			"sector":       d.Sector != "",
			"status":       d.Status != "",
			"stage":        d.Stage != "",
			"probability":  d.Probability != nil,
			"deal_value":   d.DealValue != nil,
			"close_date":   d.CloseDate != nil,
			"created_date": d.CreatedDate != nil,
		})
		deals = append(deals, d)
	}

	if err := tracker.schemaCheck(models.BoardDeals, len(items)); err != nil {
		return nil, nil, err
	}

	issues := tracker.missingIssues(models.BoardDeals, len(items), n.missingReportPct)
	issues = append(issues, n.duplicateIssues(deals)...)
	n.reportIssues(models.BoardDeals, issues)

	n.logger.Info("normalized deal records", map[string]interface{}{
		"rows":   len(deals),
		"issues": len(issues),
	})
	return deals, issues, nil
}

// NormalizeWorkOrders converts raw work order items into canonical rows.
// Repeated deal codes are expected here (one deal, many orders) and are not
// treated as duplicates.
func (n *Normalizer) NormalizeWorkOrders(items []models.RawItem) ([]models.WorkOrder, []models.QualityIssue, error) {
	n.logger.Info("normalizing work order records", map[string]interface{}{"count": len(items)})

	tracker := newFieldTracker(n.registry.WorkOrders.Fields)
	orders := make([]models.WorkOrder, 0, len(items))

	for _, item := range items {
		values := tracker.extract(item)

		o := models.WorkOrder{
			ItemID:       item.ID,
			DealCode:     CleanText(values["deal_code"]),
			SerialNumber: CleanText(values["serial_number"]),
			Sector:       CleanCategory(values["sector"]),
			Status:       CleanCategory(values["status"]),
		}
		o.OrderDate = CleanDate(values["order_date"])
		o.BilledValue = CleanNumber(values["billed_value"])
		o.CollectedValue = CleanNumber(values["collected_value"])

		if o.DealCode == "" {
			o.Flags = append(o.Flags, models.FlagMissingKey)
		}
		if o.BilledValue == nil || o.CollectedValue == nil {
			o.Flags = append(o.Flags, models.FlagMissingValue)
		}
		if o.OrderDate == nil {
			o.Flags = append(o.Flags, models.FlagMissingDate)
		}

		tracker.observe(map[string]bool{
			"deal_code":       o.DealCode != "",
			"serial_number":   o.SerialNumber != "",
			"sector":          o.Sector != "",
			"status":          o.Status != "",
			"order_date":      o.OrderDate != nil,
			"billed_value":    o.BilledValue != nil,
			"collected_value": o.CollectedValue != nil,
		})
		orders = append(orders, o)
	}

	if err := tracker.schemaCheck(models.BoardWorkOrders, len(items)); err != nil {
		return nil, nil, err
	}

	issues := tracker.missingIssues(models.BoardWorkOrders, len(items), n.missingReportPct)
	n.reportIssues(models.BoardWorkOrders, issues)

	n.logger.Info("normalized work order records", map[string]interface{}{
		"rows":   len(orders),
		"issues": len(issues),
	})
	return orders, issues, nil
}

// duplicateIssues reports deal codes appearing more than once. One issue per
// board, counting duplicate groups against the row total.
func (n *Normalizer) duplicateIssues(deals []models.Deal) []models.QualityIssue {
	counts := make(map[string]int)
	for _, d := range deals {
		if d.DealCode != "" {
			counts[d.DealCode]++
		}
	}
	groups := 0
	for _, c := range counts {
		if c > 1 {
			groups++
		}
	}
	if groups == 0 {
		return nil
	}
	return []models.QualityIssue{
		models.NewQualityIssue(models.QualityDuplicate, "deal_code", models.BoardDeals, groups, len(deals)),
	}
}

func (n *Normalizer) reportIssues(board models.Board, issues []models.QualityIssue) {
	for _, issue := range issues {
		metrics.QualityIssuesEmitted.WithLabelValues(string(board), issue.Category).Inc()
		n.logger.Warn("data quality issue", map[string]interface{}{
			"board":    issue.Board,
			"category": issue.Category,
			"field":    issue.Field,
			"affected": issue.CountAffected,
			"total":    issue.TotalCount,
			"severity": issue.Severity,
		})
	}
}

// ==========================================
// FIELD TRACKING
// ==========================================

// fieldTracker extracts configured columns from raw items and counts, per
// canonical field, how many rows carried a usable value and whether the
// mapped column ever appeared at all.
type fieldTracker struct {
	rules      []boardschema.FieldRule
	missing    map[string]int
	columnSeen map[string]bool
}

func newFieldTracker(rules []boardschema.FieldRule) *fieldTracker {
	return &fieldTracker{
		rules:      rules,
		missing:    make(map[string]int, len(rules)),
		columnSeen: make(map[string]bool, len(rules)),
	}
}

// extract pulls the configured columns out of one raw item. The column id
// "name" refers to the item's display name rather than a column value, which
// is how board exports carry the primary field. Columns whose rendered text
// is empty fall back to the raw JSON value payload: the board API renders no
// text for some column states even when the payload carries the data.
func (t *fieldTracker) extract(item models.RawItem) map[string]string {
	byColumn := make(map[string]models.ColumnValue, len(item.ColumnValues))
	for _, cv := range item.ColumnValues {
		byColumn[cv.ID] = cv
		t.columnSeen[cv.ID] = true
	}
	t.columnSeen["name"] = true

	out := make(map[string]string, len(t.rules))
	for _, rule := range t.rules {
		if rule.Column == "name" {
			out[rule.Field] = item.Name
			continue
		}
		cv := byColumn[rule.Column]
		text := cv.Text
		if text == "" {
			text = valueFallback(cv.Value, rule.Kind)
		}
		out[rule.Field] = text
	}
	return out
}

// valueFallback recovers a usable string from a column's raw JSON payload.
// Date columns nest the date under a "date" key, category columns may carry
// a "label"; scalar payloads are used as-is. Anything unparseable yields ""
// and counts as missing.
func valueFallback(raw string, kind boardschema.FieldKind) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ""
	}

	switch v := doc.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]interface{}:
		key := "label"
		if kind == boardschema.KindDate {
			key = "date"
		}
		if s, ok := v[key].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// observe records which canonical fields held a usable value for one row.
func (t *fieldTracker) observe(present map[string]bool) {
	for field, ok := range present {
		if !ok {
			t.missing[field]++
		}
	}
}

// schemaCheck fails when a required field's column appeared in no row. That
// is a mapping error, not missing data, and must not be reported as such.
func (t *fieldTracker) schemaCheck(board models.Board, total int) error {
	if total == 0 {
		return nil
	}
	for _, rule := range t.rules {
		if rule.Required && !t.columnSeen[rule.Column] {
			return errors.NewSchemaMismatchError(string(board), fmt.Sprintf("%s (column %s)", rule.Field, rule.Column))
		}
	}
	return nil
}

// missingIssues emits one issue per field whose missing fraction exceeds the
// report threshold. Fields below the threshold stay silent: per-row flags
// already carry the detail.
func (t *fieldTracker) missingIssues(board models.Board, total int, reportPct float64) []models.QualityIssue {
	if total == 0 {
		return nil
	}
	var issues []models.QualityIssue
	for _, rule := range t.rules {
		count := t.missing[rule.Field]
		if float64(count)/float64(total) > reportPct {
			issues = append(issues, models.NewQualityIssue(models.QualityMissing, rule.Field, board, count, total))
		}
	}
	return issues
}
