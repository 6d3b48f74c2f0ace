// internal/analytics/results.go
package analytics

import "intelliquery/internal/models"

// Probability bucket labels used in pipeline breakdowns.
const (
	BucketHigh    = "high"
	BucketMedium  = "medium"
	BucketLow     = "low"
	BucketUnknown = "unknown"
)

// Risk finding types and severities.
const (
	RiskStalledDeal    = "stalled_deal"
	RiskHighValue      = "high_value_low_probability"
	RiskCollection     = "collection_risk"
	RiskSeverityHigh   = "high"
	RiskSeverityMedium = "medium"
	RiskSeverityLow    = "low"
)

// TopDeal is one entry of the pipeline top-deals list.
type TopDeal struct {
	DealCode    string   `json:"deal_code"`
	ClientCode  string   `json:"client_code"`
	DealValue   float64  `json:"deal_value"`
	Probability *float64 `json:"probability"`
}

// PipelineMetrics is the pipeline-health family result.
type PipelineMetrics struct {
	TotalDeals      int              `json:"total_deals"`
	TotalValue      models.Aggregate `json:"total_pipeline_value"`
	AverageDealSize models.Aggregate `json:"average_deal_size"`
	WeightedValue   models.Aggregate `json:"weighted_pipeline_value"`
	DealsByStage    map[string]int   `json:"deals_by_stage"`
	DealsByBucket   map[string]int   `json:"deals_by_probability"`
	MonthlyTrend    map[string]int   `json:"monthly_trend"`
	TopDeals        []TopDeal        `json:"top_deals"`
}

// RevenueMetrics is the revenue family result. CollectionRate is nil when
// total billed is nil or zero; it is a ratio in [0, +inf), not a percentage.
type RevenueMetrics struct {
	TotalBilled     models.Aggregate   `json:"total_billed"`
	TotalCollected  models.Aggregate   `json:"total_collected"`
	TotalReceivable *float64           `json:"total_receivable"`
	CollectionRate  *float64           `json:"collection_rate"`
	RevenueBySector map[string]float64 `json:"revenue_by_sector"`
	MonthlyTrend    map[string]float64 `json:"monthly_trend"`
}

// RiskItem is one finding of the risk assessment.
type RiskItem struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// RiskMetrics is the risk family result.
type RiskMetrics struct {
	TotalRisks int            `json:"total_risks"`
	Risks      []RiskItem     `json:"risk_list"`
	Summary    map[string]int `json:"risk_summary"`
}

// SectorRow is the per-sector rollup of the cross-board sector comparison.
type SectorRow struct {
	Sector           string           `json:"sector"`
	DealCount        int              `json:"deal_count"`
	PipelineValue    models.Aggregate `json:"pipeline_value"`
	BilledRevenue    models.Aggregate `json:"billed_revenue"`
	CollectedRevenue models.Aggregate `json:"collected_revenue"`
	AvgDealSize      *float64         `json:"avg_deal_size"`
}

// OwnerRow is the per-owner rollup of the utilization family.
type OwnerRow struct {
	Owner      string           `json:"owner"`
	DealCount  int              `json:"deal_count"`
	TotalValue models.Aggregate `json:"total_value"`
	OrderCount int              `json:"order_count"`
}

// UtilizationMetrics is the utilization family result.
type UtilizationMetrics struct {
	Owners []OwnerRow `json:"owners"`
}

// OperationalMetrics is the operational family result. ConversionRate is nil
// when no deals have a recognizable won/lost outcome.
type OperationalMetrics struct {
	TotalDeals     int              `json:"total_deals"`
	WonCount       int              `json:"won_count"`
	LostCount      int              `json:"lost_count"`
	OpenCount      int              `json:"open_count"`
	ConversionRate *float64         `json:"conversion_rate"`
	AvgCycleDays   models.Aggregate `json:"avg_cycle_days"`
	DealsByStage   map[string]int   `json:"deals_by_stage"`
}

// Result bundles whichever family was computed for one query.
type Result struct {
	Pipeline    *PipelineMetrics    `json:"pipeline,omitempty"`
	Revenue     *RevenueMetrics     `json:"revenue,omitempty"`
	Risk        *RiskMetrics        `json:"risk,omitempty"`
	Sectors     []SectorRow         `json:"sectors,omitempty"`
	Utilization *UtilizationMetrics `json:"utilization,omitempty"`
	Operational *OperationalMetrics `json:"operational,omitempty"`
}
