// internal/joiner/joiner.go

// Package joiner combines the deal and work order tables on their shared
// business key. Orders are aggregated per deal before joining so the deal
// side keeps exactly one row per input deal.
package joiner

import (
	"intelliquery/internal/common/logger"
	"intelliquery/internal/common/metrics"
	"intelliquery/internal/models"
)

// Joiner performs the left join and reports match-rate quality issues.
type Joiner struct {
	unmatchedReportPct float64
	logger             logger.Logger
}

func New(unmatchedReportPct float64, log logger.Logger) *Joiner {
	if unmatchedReportPct <= 0 {
		unmatchedReportPct = 0.10
	}
	return &Joiner{
		unmatchedReportPct: unmatchedReportPct,
		logger:             log.WithFields(map[string]interface{}{"component": "joiner"}),
	}
}

// orderAggregate holds the per-deal rollup of the order side. Sums stay nil
// until the first numeric value: a deal whose orders all lack billing data
// must not look like one billed for zero.
type orderAggregate struct {
	billed    *float64
	collected *float64
	count     int
}

func (a *orderAggregate) add(o models.WorkOrder) {
	a.count++
	a.billed = addNullable(a.billed, o.BilledValue)
	a.collected = addNullable(a.collected, o.CollectedValue)
}

func addNullable(sum, v *float64) *float64 {
	if v == nil {
		return sum
	}
	if sum == nil {
		return models.Ptr(*v)
	}
	return models.Ptr(*sum + *v)
}

// Join left-joins deals against the per-deal order aggregates. Every deal
// row survives; orders whose deal code matches no deal land in Orphans so
// revenue analysis can still count them.
func (j *Joiner) Join(deals []models.Deal, orders []models.WorkOrder) (models.JoinedTable, []models.QualityIssue) {
	aggregates := make(map[string]*orderAggregate)
	for _, o := range orders {
		if o.DealCode == "" {
			continue
		}
		agg, ok := aggregates[o.DealCode]
		if !ok {
			agg = &orderAggregate{}
			aggregates[o.DealCode] = agg
		}
		agg.add(o)
	}

	table := models.JoinedTable{Rows: make([]models.JoinedDeal, 0, len(deals))}
	dealCodes := make(map[string]bool, len(deals))
	unmatched := 0

	for _, d := range deals {
		row := models.JoinedDeal{Deal: d}
		if d.DealCode != "" {
			dealCodes[d.DealCode] = true
			if agg, ok := aggregates[d.DealCode]; ok {
				row.BilledValue = agg.billed
				row.CollectedValue = agg.collected
				row.OrderCount = agg.count
			} else {
				unmatched++
			}
		} else {
			unmatched++
		}
		table.Rows = append(table.Rows, row)
	}

	for _, o := range orders {
		if o.DealCode == "" || !dealCodes[o.DealCode] {
			table.Orphans = append(table.Orphans, o)
		}
	}

	issues := j.matchIssues(len(deals), unmatched, len(orders), len(table.Orphans))

	j.logger.Info("joined boards", map[string]interface{}{
		"deals":     len(deals),
		"orders":    len(orders),
		"unmatched": unmatched,
		"orphans":   len(table.Orphans),
	})
	return table, issues
}

// matchIssues reports unmatched deals and orphan orders when either fraction
// exceeds the report threshold. Low match rates usually mean key-entry
// problems on one board rather than genuinely unrelated records.
func (j *Joiner) matchIssues(totalDeals, unmatched, totalOrders, orphans int) []models.QualityIssue {
	var issues []models.QualityIssue

	if totalDeals > 0 && float64(unmatched)/float64(totalDeals) > j.unmatchedReportPct {
		issue := models.NewQualityIssue(models.QualityUnmatched, "deal_code", models.BoardDeals, unmatched, totalDeals)
		metrics.QualityIssuesEmitted.WithLabelValues(string(models.BoardDeals), issue.Category).Inc()
		issues = append(issues, issue)
	}
	if totalOrders > 0 && float64(orphans)/float64(totalOrders) > j.unmatchedReportPct {
		issue := models.NewQualityIssue(models.QualityOrphan, "deal_code", models.BoardWorkOrders, orphans, totalOrders)
		metrics.QualityIssuesEmitted.WithLabelValues(string(models.BoardWorkOrders), issue.Category).Inc()
		issues = append(issues, issue)
	}
	return issues
}
