// internal/analytics/engine.go

// Package analytics computes the six metric families over the normalized
// and joined tables. Every computation is a pure function of its inputs;
// aggregates always carry (valid_count, total_count) so callers can present
// "based on N of M records".
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"intelliquery/internal/common/config"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/dateutil"
	"intelliquery/internal/models"
)

// Statuses that mean a deal's lifecycle has ended. Everything else counts
// as open, including blank status.
var closedStatuses = map[string]bool{
	"won":         true,
	"lost":        true,
	"closed":      true,
	"closed won":  true,
	"closed lost": true,
}

// Engine computes metrics with configurable thresholds. now is injectable
// so date-relative metrics are deterministic in tests.
type Engine struct {
	cfg    config.AnalyticsConfig
	logger logger.Logger
	now    func() time.Time
}

func New(cfg config.AnalyticsConfig, log logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "analytics"}),
		now:    time.Now,
	}
}

func isOpenStatus(status string) bool {
	return !closedStatuses[status]
}

func (e *Engine) bucketFor(p *float64) string {
	switch {
	case p == nil:
		return BucketUnknown
	case *p >= e.cfg.HighProbability:
		return BucketHigh
	case *p >= e.cfg.MediumProbability:
		return BucketMedium
	default:
		return BucketLow
	}
}

// ==========================================
// PIPELINE
// ==========================================

// Pipeline analyzes sales pipeline health over the deals table.
func (e *Engine) Pipeline(deals []models.Deal, f models.Filters) PipelineMetrics {
	rows := FilterDeals(deals, f)
	total := len(rows)

	m := PipelineMetrics{
		TotalDeals:    total,
		DealsByStage:  make(map[string]int),
		DealsByBucket: make(map[string]int),
		MonthlyTrend:  make(map[string]int),
	}

	var sum, weighted float64
	sumValid, weightedValid := 0, 0

	for _, d := range rows {
		if d.DealValue != nil {
			sum += *d.DealValue
			sumValid++
			if d.Probability != nil {
				weighted += *d.DealValue * *d.Probability / 100
				weightedValid++
			}
		}
		stage := d.Stage
		if stage == "" {
			stage = "unknown"
		}
		m.DealsByStage[stage]++
		m.DealsByBucket[e.bucketFor(d.Probability)]++
		if d.CloseDate != nil {
			m.MonthlyTrend[dateutil.MonthYear(d.CloseDate)]++
		}
	}

	m.TotalValue = aggregate(sum, sumValid, total)
	m.WeightedValue = aggregate(weighted, weightedValid, total)
	if sumValid > 0 {
		m.AverageDealSize = aggregate(sum/float64(sumValid), sumValid, total)
	} else {
		m.AverageDealSize = models.Aggregate{TotalCount: total}
	}
	m.TopDeals = topDealsByValue(rows, 5)
	return m
}

func topDealsByValue(rows []models.Deal, n int) []TopDeal {
	valued := make([]models.Deal, 0, len(rows))
	for _, d := range rows {
		if d.DealValue != nil {
			valued = append(valued, d)
		}
	}
	sort.SliceStable(valued, func(i, j int) bool {
		return *valued[i].DealValue > *valued[j].DealValue
	})
	if len(valued) > n {
		valued = valued[:n]
	}
	top := make([]TopDeal, 0, len(valued))
	for _, d := range valued {
		top = append(top, TopDeal{
			DealCode:    d.DealCode,
			ClientCode:  d.ClientCode,
			DealValue:   *d.DealValue,
			Probability: d.Probability,
		})
	}
	return top
}

// ==========================================
// REVENUE
// ==========================================

// Revenue analyzes billing and collections over the work order table. The
// caller passes all orders including orphans: revenue exists regardless of
// whether the order matched a deal.
func (e *Engine) Revenue(orders []models.WorkOrder, f models.Filters) RevenueMetrics {
	rows := FilterOrders(orders, f)
	total := len(rows)

	m := RevenueMetrics{
		RevenueBySector: make(map[string]float64),
		MonthlyTrend:    make(map[string]float64),
	}

	var billed, collected float64
	billedValid, collectedValid := 0, 0

	for _, o := range rows {
		if o.BilledValue != nil {
			billed += *o.BilledValue
			billedValid++
			sector := o.Sector
			if sector == "" {
				sector = "unknown"
			}
			m.RevenueBySector[sector] += *o.BilledValue
			if o.OrderDate != nil {
				m.MonthlyTrend[dateutil.MonthYear(o.OrderDate)] += *o.BilledValue
			}
		}
		if o.CollectedValue != nil {
			collected += *o.CollectedValue
			collectedValid++
		}
	}

	m.TotalBilled = aggregate(billed, billedValid, total)
	m.TotalCollected = aggregate(collected, collectedValid, total)
	if billedValid > 0 {
		m.TotalReceivable = models.Ptr(billed - collected)
	}
	// Rate stays nil on zero or unknown billing: never divide by zero.
	if billedValid > 0 && billed > 0 {
		m.CollectionRate = models.Ptr(collected / billed)
	}
	return m
}

// ==========================================
// RISK
// ==========================================

// Risk identifies stalled deals, high-value low-probability deals and
// uncollected billings.
func (e *Engine) Risk(deals []models.Deal, orders []models.WorkOrder, f models.Filters) RiskMetrics {
	dealRows := FilterDeals(deals, f)
	orderRows := FilterOrders(orders, f)
	now := e.now()

	var risks []RiskItem

	for _, d := range dealRows {
		if !isOpenStatus(d.Status) {
			continue
		}
		if days := e.stalledDays(d, now); days > 0 {
			risks = append(risks, RiskItem{
				Type:     RiskStalledDeal,
				ID:       d.DealCode,
				Severity: RiskSeverityMedium,
				Message:  fmt.Sprintf("Deal open for %d days in stage '%s'", days, d.Stage),
			})
		}
	}

	threshold := valueQuantile(dealRows, e.cfg.TopValueQuantile)
	if threshold != nil {
		for _, d := range dealRows {
			if d.DealValue != nil && *d.DealValue > *threshold &&
				d.Probability != nil && *d.Probability < e.cfg.LowProbability {
				risks = append(risks, RiskItem{
					Type:     RiskHighValue,
					ID:       d.DealCode,
					Severity: RiskSeverityHigh,
					Message:  fmt.Sprintf("High value deal (%.0f) with probability %.0f%%", *d.DealValue, *d.Probability),
				})
			}
		}
	}

	for _, o := range orderRows {
		if o.BilledValue == nil || *o.BilledValue <= 0 {
			continue
		}
		collected := 0.0
		if o.CollectedValue != nil {
			collected = *o.CollectedValue
		}
		if outstanding := *o.BilledValue - collected; outstanding > 0 {
			risks = append(risks, RiskItem{
				Type:     RiskCollection,
				ID:       o.DealCode,
				Severity: RiskSeverityHigh,
				Message:  fmt.Sprintf("Billed %.0f with %.0f outstanding", *o.BilledValue, outstanding),
			})
		}
	}

	summary := map[string]int{RiskSeverityHigh: 0, RiskSeverityMedium: 0, RiskSeverityLow: 0}
	for _, r := range risks {
		summary[r.Severity]++
	}
	return RiskMetrics{TotalRisks: len(risks), Risks: risks, Summary: summary}
}

// stalledDays returns how long an open deal has been sitting past its
// threshold: overdue close dates use the stalled window, deals with no close
// date at all fall back to age since creation against the staleness window.
// Zero means not stalled.
func (e *Engine) stalledDays(d models.Deal, now time.Time) int {
	if d.CloseDate != nil {
		days := int(now.Sub(*d.CloseDate).Hours() / 24)
		if days > e.cfg.StalledAfterDays {
			return days
		}
		return 0
	}
	if d.CreatedDate != nil {
		days := int(now.Sub(*d.CreatedDate).Hours() / 24)
		if days > e.cfg.StaleCreatedDays {
			return days
		}
	}
	return 0
}

// valueQuantile computes the nearest-rank quantile of the non-nil deal
// values, or nil when no deal has a value.
func valueQuantile(rows []models.Deal, q float64) *float64 {
	values := make([]float64, 0, len(rows))
	for _, d := range rows {
		if d.DealValue != nil {
			values = append(values, *d.DealValue)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)
	rank := int(math.Ceil(float64(len(values)) * q))
	if rank < 1 {
		rank = 1
	}
	if rank > len(values) {
		rank = len(values)
	}
	return models.Ptr(values[rank-1])
}

// ==========================================
// SECTOR COMPARISON
// ==========================================

// Sector compares pipeline value and revenue per sector over the joined
// table. This is the one cross-board family: it needs deal values and order
// billings on the same row.
func (e *Engine) Sector(table models.JoinedTable, f models.Filters) []SectorRow {
	rows := FilterJoined(table.Rows, f)

	type acc struct {
		dealCount                              int
		pipeline, billed, collected            float64
		pipelineValid, billedValid, colldValid int
	}
	bySector := make(map[string]*acc)

	for _, r := range rows {
		sector := r.Sector
		if sector == "" {
			sector = "unknown"
		}
		a, ok := bySector[sector]
		if !ok {
			a = &acc{}
			bySector[sector] = a
		}
		a.dealCount++
		if r.Deal.DealValue != nil {
			a.pipeline += *r.Deal.DealValue
			a.pipelineValid++
		}
		if r.BilledValue != nil {
			a.billed += *r.BilledValue
			a.billedValid++
		}
		if r.CollectedValue != nil {
			a.collected += *r.CollectedValue
			a.colldValid++
		}
	}

	out := make([]SectorRow, 0, len(bySector))
	for sector, a := range bySector {
		row := SectorRow{
			Sector:           sector,
			DealCount:        a.dealCount,
			PipelineValue:    aggregate(a.pipeline, a.pipelineValid, a.dealCount),
			BilledRevenue:    aggregate(a.billed, a.billedValid, a.dealCount),
			CollectedRevenue: aggregate(a.collected, a.colldValid, a.dealCount),
		}
		if a.pipelineValid > 0 {
			row.AvgDealSize = models.Ptr(a.pipeline / float64(a.pipelineValid))
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PipelineValue.Float() > out[j].PipelineValue.Float()
	})
	return out
}

// ==========================================
// UTILIZATION
// ==========================================

// Utilization rolls up deal load per owner from the joined table.
func (e *Engine) Utilization(table models.JoinedTable, f models.Filters) UtilizationMetrics {
	rows := FilterJoined(table.Rows, f)

	type acc struct {
		dealCount, orderCount, valid int
		value                        float64
	}
	byOwner := make(map[string]*acc)

	for _, r := range rows {
		owner := r.OwnerCode
		if owner == "" {
			owner = "unassigned"
		}
		a, ok := byOwner[owner]
		if !ok {
			a = &acc{}
			byOwner[owner] = a
		}
		a.dealCount++
		a.orderCount += r.OrderCount
		if r.Deal.DealValue != nil {
			a.value += *r.Deal.DealValue
			a.valid++
		}
	}

	owners := make([]OwnerRow, 0, len(byOwner))
	for owner, a := range byOwner {
		owners = append(owners, OwnerRow{
			Owner:      owner,
			DealCount:  a.dealCount,
			TotalValue: aggregate(a.value, a.valid, a.dealCount),
			OrderCount: a.orderCount,
		})
	}
	sort.Slice(owners, func(i, j int) bool {
		return owners[i].TotalValue.Float() > owners[j].TotalValue.Float()
	})
	return UtilizationMetrics{Owners: owners}
}

// ==========================================
// OPERATIONAL
// ==========================================

// Operational computes conversion rate and average deal cycle time.
// Conversion uses decided deals only: won / (won + lost).
func (e *Engine) Operational(deals []models.Deal, f models.Filters) OperationalMetrics {
	rows := FilterDeals(deals, f)

	m := OperationalMetrics{
		TotalDeals:   len(rows),
		DealsByStage: make(map[string]int),
	}

	var cycleSum float64
	cycleValid := 0

	for _, d := range rows {
		switch d.Status {
		case "won", "closed won":
			m.WonCount++
		case "lost", "closed lost":
			m.LostCount++
		default:
			m.OpenCount++
		}
		stage := d.Stage
		if stage == "" {
			stage = "unknown"
		}
		m.DealsByStage[stage]++

		if days := dateutil.DaysBetween(d.CreatedDate, d.CloseDate); days != nil {
			cycleSum += float64(*days)
			cycleValid++
		}
	}

	if decided := m.WonCount + m.LostCount; decided > 0 {
		m.ConversionRate = models.Ptr(float64(m.WonCount) / float64(decided))
	}
	if cycleValid > 0 {
		m.AvgCycleDays = aggregate(cycleSum/float64(cycleValid), cycleValid, len(rows))
	} else {
		m.AvgCycleDays = models.Aggregate{TotalCount: len(rows)}
	}
	return m
}

// aggregate wraps a computed value with its contribution counts. A value no
// record contributed to stays nil rather than zero.
func aggregate(value float64, valid, total int) models.Aggregate {
	a := models.Aggregate{ValidCount: valid, TotalCount: total}
	if valid > 0 {
		a.Value = models.Ptr(value)
	}
	return a
}
