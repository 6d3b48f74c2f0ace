// internal/analytics/engine_test.go
package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelliquery/internal/common/config"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/models"
)

var testCfg = config.AnalyticsConfig{
	StalledAfterDays:  90,
	StaleCreatedDays:  180,
	LowProbability:    30,
	TopValueQuantile:  0.75,
	HighProbability:   70,
	MediumProbability: 40,
}

func newTestEngine(now time.Time) *Engine {
	e := New(testCfg, logger.NewNoOpLogger())
	e.now = func() time.Time { return now }
	return e
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// ==========================================
// FILTERS
// ==========================================

func TestFilterDeals(t *testing.T) {
	deals := []models.Deal{
		{DealCode: "D-001", Sector: "mining", Status: "open", Probability: models.Ptr(70.0), CloseDate: date(2026, 3, 1)},
		{DealCode: "D-002", Sector: "energy", Status: "open", Probability: models.Ptr(20.0), CloseDate: date(2026, 6, 1)},
		{DealCode: "D-003", Sector: "mining", Status: "won", Probability: nil, CloseDate: nil},
	}

	tests := []struct {
		name     string
		filters  models.Filters
		expected []string
	}{
		{
			name:     "No filters keeps everything",
			filters:  models.Filters{},
			expected: []string{"D-001", "D-002", "D-003"},
		},
		{
			name:     "Sector is case-insensitive",
			filters:  models.Filters{Sector: " Mining "},
			expected: []string{"D-001", "D-003"},
		},
		{
			name:     "Sector and status combine",
			filters:  models.Filters{Sector: "mining", Status: "open"},
			expected: []string{"D-001"},
		},
		{
			name:     "Probability range is inclusive and excludes nil",
			filters:  models.Filters{ProbabilityMin: models.Ptr(20.0), ProbabilityMax: models.Ptr(70.0)},
			expected: []string{"D-001", "D-002"},
		},
		{
			name:     "Date range excludes nil close dates",
			filters:  models.Filters{DateFrom: date(2026, 1, 1), DateTo: date(2026, 3, 31)},
			expected: []string{"D-001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterDeals(deals, tt.filters)
			codes := make([]string, 0, len(got))
			for _, d := range got {
				codes = append(codes, d.DealCode)
			}
			assert.Equal(t, tt.expected, codes)
		})
	}
}

// ==========================================
// PIPELINE
// ==========================================

func TestPipeline_WeightedValue(t *testing.T) {
	e := newTestEngine(time.Now())

	deals := []models.Deal{
		{DealCode: "D-001", Stage: "proposal", DealValue: models.Ptr(1000.0), Probability: models.Ptr(50.0)},
		{DealCode: "D-002", Stage: "proposal", DealValue: models.Ptr(2000.0), Probability: nil},
	}

	m := e.Pipeline(deals, models.Filters{})

	assert.Equal(t, 2, m.TotalDeals)

	// Plain sum ignores probability: both values contribute.
	require.NotNil(t, m.TotalValue.Value)
	assert.Equal(t, 3000.0, *m.TotalValue.Value)
	assert.Equal(t, 2, m.TotalValue.ValidCount)
	assert.Equal(t, 2, m.TotalValue.TotalCount)

	// Weighted sum needs both fields: only the first row contributes.
	require.NotNil(t, m.WeightedValue.Value)
	assert.Equal(t, 500.0, *m.WeightedValue.Value)
	assert.Equal(t, 1, m.WeightedValue.ValidCount)
	assert.Equal(t, 2, m.WeightedValue.TotalCount)
}

func TestPipeline_BreakdownsAndTopDeals(t *testing.T) {
	e := newTestEngine(time.Now())

	deals := []models.Deal{
		{DealCode: "D-001", Stage: "proposal", DealValue: models.Ptr(100.0), Probability: models.Ptr(80.0), CloseDate: date(2026, 1, 15)},
		{DealCode: "D-002", Stage: "proposal", DealValue: models.Ptr(900.0), Probability: models.Ptr(50.0), CloseDate: date(2026, 1, 20)},
		{DealCode: "D-003", Stage: "negotiation", DealValue: models.Ptr(300.0), Probability: models.Ptr(10.0), CloseDate: date(2026, 2, 1)},
		{DealCode: "D-004", Stage: "", DealValue: nil, Probability: nil, CloseDate: nil},
	}

	m := e.Pipeline(deals, models.Filters{})

	assert.Equal(t, map[string]int{"proposal": 2, "negotiation": 1, "unknown": 1}, m.DealsByStage)
	assert.Equal(t, map[string]int{BucketHigh: 1, BucketMedium: 1, BucketLow: 1, BucketUnknown: 1}, m.DealsByBucket)
	assert.Equal(t, map[string]int{"Jan 2026": 2, "Feb 2026": 1}, m.MonthlyTrend)

	require.Len(t, m.TopDeals, 3)
	assert.Equal(t, "D-002", m.TopDeals[0].DealCode)
	assert.Equal(t, 900.0, m.TopDeals[0].DealValue)

	require.NotNil(t, m.AverageDealSize.Value)
	assert.InDelta(t, 433.33, *m.AverageDealSize.Value, 0.01)
	assert.Equal(t, 3, m.AverageDealSize.ValidCount)
	assert.Equal(t, 4, m.AverageDealSize.TotalCount)
}

func TestPipeline_Empty(t *testing.T) {
	e := newTestEngine(time.Now())

	m := e.Pipeline(nil, models.Filters{})
	assert.Equal(t, 0, m.TotalDeals)
	assert.Nil(t, m.TotalValue.Value)
	assert.Empty(t, m.TopDeals)
}

// ==========================================
// REVENUE
// ==========================================

func TestRevenue(t *testing.T) {
	e := newTestEngine(time.Now())

	orders := []models.WorkOrder{
		{DealCode: "D-001", Sector: "mining", BilledValue: models.Ptr(1000.0), CollectedValue: models.Ptr(800.0), OrderDate: date(2026, 1, 10)},
		{DealCode: "D-002", Sector: "energy", BilledValue: models.Ptr(500.0), CollectedValue: nil, OrderDate: date(2026, 2, 5)},
		{DealCode: "D-003", Sector: "mining", BilledValue: nil, CollectedValue: models.Ptr(100.0), OrderDate: nil},
	}

	m := e.Revenue(orders, models.Filters{})

	require.NotNil(t, m.TotalBilled.Value)
	assert.Equal(t, 1500.0, *m.TotalBilled.Value)
	assert.Equal(t, 2, m.TotalBilled.ValidCount)
	assert.Equal(t, 3, m.TotalBilled.TotalCount)

	require.NotNil(t, m.TotalCollected.Value)
	assert.Equal(t, 900.0, *m.TotalCollected.Value)

	require.NotNil(t, m.CollectionRate)
	assert.InDelta(t, 0.6, *m.CollectionRate, 0.001)

	require.NotNil(t, m.TotalReceivable)
	assert.Equal(t, 600.0, *m.TotalReceivable)

	assert.Equal(t, map[string]float64{"mining": 1000.0, "energy": 500.0}, m.RevenueBySector)
	assert.Equal(t, map[string]float64{"Jan 2026": 1000.0, "Feb 2026": 500.0}, m.MonthlyTrend)
}

func TestRevenue_CollectionRateNeverDividesByZero(t *testing.T) {
	e := newTestEngine(time.Now())

	t.Run("Zero billed", func(t *testing.T) {
		m := e.Revenue([]models.WorkOrder{
			{DealCode: "D-001", BilledValue: models.Ptr(0.0), CollectedValue: models.Ptr(50.0)},
		}, models.Filters{})
		assert.Nil(t, m.CollectionRate)
	})

	t.Run("Nil billed", func(t *testing.T) {
		m := e.Revenue([]models.WorkOrder{
			{DealCode: "D-001", BilledValue: nil, CollectedValue: models.Ptr(50.0)},
		}, models.Filters{})
		assert.Nil(t, m.CollectionRate)
		assert.Nil(t, m.TotalBilled.Value)
	})

	t.Run("Collections above billing are allowed", func(t *testing.T) {
		m := e.Revenue([]models.WorkOrder{
			{DealCode: "D-001", BilledValue: models.Ptr(100.0), CollectedValue: models.Ptr(150.0)},
		}, models.Filters{})
		require.NotNil(t, m.CollectionRate)
		assert.Equal(t, 1.5, *m.CollectionRate)
	})
}

// ==========================================
// RISK
// ==========================================

func TestRisk(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	deals := []models.Deal{
		// Open with a close date 120 days in the past: stalled.
		{DealCode: "D-001", Status: "open", Stage: "proposal", CloseDate: date(2026, 2, 1), DealValue: models.Ptr(100.0), Probability: models.Ptr(50.0)},
		// Won deals never stall regardless of dates.
		{DealCode: "D-002", Status: "won", CloseDate: date(2025, 1, 1), DealValue: models.Ptr(200.0), Probability: models.Ptr(90.0)},
		// No close date, created over the staleness window ago: stalled.
		{DealCode: "D-003", Status: "open", Stage: "lead", CreatedDate: date(2025, 9, 1), DealValue: models.Ptr(300.0), Probability: models.Ptr(60.0)},
		// Top-quantile value with probability under the low threshold.
		{DealCode: "D-004", Status: "open", Stage: "proposal", CloseDate: date(2026, 8, 1), DealValue: models.Ptr(5000.0), Probability: models.Ptr(20.0)},
	}
	orders := []models.WorkOrder{
		{DealCode: "D-002", BilledValue: models.Ptr(1000.0), CollectedValue: models.Ptr(400.0)},
		{DealCode: "D-002", BilledValue: models.Ptr(500.0), CollectedValue: models.Ptr(500.0)},
	}

	m := e.Risk(deals, orders, models.Filters{})

	byType := map[string][]RiskItem{}
	for _, r := range m.Risks {
		byType[r.Type] = append(byType[r.Type], r)
	}

	require.Len(t, byType[RiskStalledDeal], 2)
	assert.Equal(t, "D-001", byType[RiskStalledDeal][0].ID)
	assert.Equal(t, "D-003", byType[RiskStalledDeal][1].ID)

	require.Len(t, byType[RiskHighValue], 1)
	assert.Equal(t, "D-004", byType[RiskHighValue][0].ID)
	assert.Equal(t, RiskSeverityHigh, byType[RiskHighValue][0].Severity)

	require.Len(t, byType[RiskCollection], 1)
	assert.Equal(t, "D-002", byType[RiskCollection][0].ID)

	assert.Equal(t, 4, m.TotalRisks)
	assert.Equal(t, 2, m.Summary[RiskSeverityHigh])
	assert.Equal(t, 2, m.Summary[RiskSeverityMedium])
}

func TestRisk_NoValuesNoQuantile(t *testing.T) {
	e := newTestEngine(time.Now())

	deals := []models.Deal{
		{DealCode: "D-001", Status: "open", Probability: models.Ptr(10.0)},
	}
	m := e.Risk(deals, nil, models.Filters{})
	assert.Equal(t, 0, m.TotalRisks)
}

// ==========================================
// SECTOR COMPARISON
// ==========================================

func TestSector(t *testing.T) {
	e := newTestEngine(time.Now())

	table := models.JoinedTable{Rows: []models.JoinedDeal{
		{Deal: models.Deal{DealCode: "D-001", Sector: "mining", DealValue: models.Ptr(1000.0)}, BilledValue: models.Ptr(400.0), CollectedValue: models.Ptr(300.0), OrderCount: 2},
		{Deal: models.Deal{DealCode: "D-002", Sector: "mining", DealValue: models.Ptr(3000.0)}},
		{Deal: models.Deal{DealCode: "D-003", Sector: "energy", DealValue: models.Ptr(500.0)}, BilledValue: models.Ptr(100.0), OrderCount: 1},
	}}

	rows := e.Sector(table, models.Filters{})
	require.Len(t, rows, 2)

	// Sorted by pipeline value: mining first.
	mining := rows[0]
	assert.Equal(t, "mining", mining.Sector)
	assert.Equal(t, 2, mining.DealCount)
	assert.Equal(t, 4000.0, mining.PipelineValue.Float())
	assert.Equal(t, 400.0, mining.BilledRevenue.Float())
	assert.Equal(t, 1, mining.BilledRevenue.ValidCount)
	require.NotNil(t, mining.AvgDealSize)
	assert.Equal(t, 2000.0, *mining.AvgDealSize)

	energy := rows[1]
	assert.Equal(t, "energy", energy.Sector)
	assert.Nil(t, energy.CollectedRevenue.Value)
}

// ==========================================
// UTILIZATION
// ==========================================

func TestUtilization(t *testing.T) {
	e := newTestEngine(time.Now())

	table := models.JoinedTable{Rows: []models.JoinedDeal{
		{Deal: models.Deal{DealCode: "D-001", OwnerCode: "AS", DealValue: models.Ptr(100.0)}, OrderCount: 3},
		{Deal: models.Deal{DealCode: "D-002", OwnerCode: "AS", DealValue: models.Ptr(200.0)}, OrderCount: 1},
		{Deal: models.Deal{DealCode: "D-003", OwnerCode: "", DealValue: nil}},
	}}

	m := e.Utilization(table, models.Filters{})
	require.Len(t, m.Owners, 2)

	assert.Equal(t, "AS", m.Owners[0].Owner)
	assert.Equal(t, 2, m.Owners[0].DealCount)
	assert.Equal(t, 4, m.Owners[0].OrderCount)
	assert.Equal(t, 300.0, m.Owners[0].TotalValue.Float())

	assert.Equal(t, "unassigned", m.Owners[1].Owner)
	assert.Nil(t, m.Owners[1].TotalValue.Value)
}

// ==========================================
// OPERATIONAL
// ==========================================

func TestOperational(t *testing.T) {
	e := newTestEngine(time.Now())

	deals := []models.Deal{
		{DealCode: "D-001", Status: "won", Stage: "closed", CreatedDate: date(2026, 1, 1), CloseDate: date(2026, 1, 31)},
		{DealCode: "D-002", Status: "lost", Stage: "closed", CreatedDate: date(2026, 1, 1), CloseDate: date(2026, 1, 11)},
		{DealCode: "D-003", Status: "open", Stage: "proposal", CreatedDate: date(2026, 2, 1)},
		{DealCode: "D-004", Status: "won", Stage: "closed"},
	}

	m := e.Operational(deals, models.Filters{})

	assert.Equal(t, 4, m.TotalDeals)
	assert.Equal(t, 2, m.WonCount)
	assert.Equal(t, 1, m.LostCount)
	assert.Equal(t, 1, m.OpenCount)

	// 2 won of 3 decided.
	require.NotNil(t, m.ConversionRate)
	assert.InDelta(t, 0.6667, *m.ConversionRate, 0.001)

	// Cycle time only over rows with both dates: (30 + 10) / 2.
	require.NotNil(t, m.AvgCycleDays.Value)
	assert.Equal(t, 20.0, *m.AvgCycleDays.Value)
	assert.Equal(t, 2, m.AvgCycleDays.ValidCount)
	assert.Equal(t, 4, m.AvgCycleDays.TotalCount)
}

func TestOperational_NoDecidedDeals(t *testing.T) {
	e := newTestEngine(time.Now())

	m := e.Operational([]models.Deal{{DealCode: "D-001", Status: "open"}}, models.Filters{})
	assert.Nil(t, m.ConversionRate)
	assert.Nil(t, m.AvgCycleDays.Value)
}
