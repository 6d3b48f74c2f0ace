// internal/pipeline/service_test.go
package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelliquery/internal/analytics"
	"intelliquery/internal/common/cache"
	"intelliquery/internal/common/config"
	stderrors "intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/joiner"
	"intelliquery/internal/models"
	"intelliquery/internal/normalizer"
	"intelliquery/pkg/boardschema"
)

// ==========================================
// FAKE COLLABORATORS
// ==========================================

type fakeFetcher struct {
	boards map[string][]models.RawItem
	calls  int
	err    error
}

func (f *fakeFetcher) FetchBoardItems(_ context.Context, boardID string) ([]models.RawItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items, ok := f.boards[boardID]
	if !ok {
		return nil, fmt.Errorf("unknown board %s", boardID)
	}
	return items, nil
}

type fakeClassifier struct {
	intent *models.Intent
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, _ models.Filters) (*models.Intent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Narrate(_ context.Context, _ string, _ models.IntentKind, _ interface{}, _ []models.QualityIssue) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// ==========================================
// FIXTURE
// ==========================================

func rawItem(id, name string, cols map[string]string) models.RawItem {
	item := models.RawItem{ID: id, Name: name}
	for col, text := range cols {
		item.ColumnValues = append(item.ColumnValues, models.ColumnValue{ID: col, Text: text})
	}
	return item
}

// fixtureBoards builds a small two-board data set with known totals:
// mining orders bill 1800 and collect 1000; one order references no deal;
// billed_value, collected_value and order_date all exceed 10% missing.
func fixtureBoards() map[string][]models.RawItem {
	return map[string][]models.RawItem{
		"deals-board": {
			rawItem("1", "D-001", map[string]string{
				"text8": "Mining", "status": "Open", "status5": "Proposal",
				"dropdown": "70", "numbers": "10000", "date": "2026-06-01", "date9": "2026-01-01",
			}),
			rawItem("2", "D-002", map[string]string{
				"text8": "Energy", "status": "Won", "status5": "Closed",
				"dropdown": "90", "numbers": "7000", "date": "2026-02-01", "date9": "2025-11-01",
			}),
			rawItem("3", "D-003", map[string]string{
				"text8": "Mining", "status": "Open", "status5": "Lead",
				"dropdown": "20", "numbers": "50000", "date": "2026-09-01", "date9": "2026-02-01",
			}),
		},
		"orders-board": {
			rawItem("10", "WO-1", map[string]string{
				"text": "D-001", "text6": "Mining", "numbers0": "1000", "numbers4": "800", "date4": "2026-01-10",
			}),
			rawItem("11", "WO-2", map[string]string{
				"text": "D-001", "text6": "Mining", "numbers0": "500", "numbers4": "200", "date4": "2026-02-05",
			}),
			rawItem("12", "WO-3", map[string]string{
				"text": "D-002", "text6": "Energy", "numbers0": "700", "numbers4": "700",
			}),
			rawItem("13", "WO-4", map[string]string{
				"text": "D-999", "text6": "Mining", "numbers0": "300",
			}),
			rawItem("14", "WO-5", map[string]string{
				"text": "D-003", "text6": "Mining",
			}),
		},
	}
}

func newTestService(t *testing.T, fetcher BoardFetcher, classifier IntentClassifier, narrator InsightNarrator, snapshotCache *cache.SnapshotCache) *Service {
	t.Helper()
	log := logger.NewNoOpLogger()

	norm, err := normalizer.New(boardschema.Default(), 0.10, log)
	require.NoError(t, err)

	engine := analytics.New(config.AnalyticsConfig{
		StalledAfterDays:  90,
		StaleCreatedDays:  180,
		LowProbability:    30,
		TopValueQuantile:  0.75,
		HighProbability:   70,
		MediumProbability: 40,
	}, log)

	return NewService(
		config.BoardsConfig{DealBoardID: "deals-board", WorkOrderBoardID: "orders-board"},
		fetcher,
		classifier,
		narrator,
		norm,
		joiner.New(0.10, log),
		engine,
		snapshotCache,
		log,
	)
}

// ==========================================
// END TO END
// ==========================================

func TestAnswer_RevenueForMining(t *testing.T) {
	classified := &models.Intent{
		Kind:    models.IntentRevenue,
		Filters: models.Filters{Sector: "mining"},
	}
	svc := newTestService(t,
		&fakeFetcher{boards: fixtureBoards()},
		&fakeClassifier{intent: classified},
		&fakeNarrator{text: "Mining revenue ..."},
		nil,
	)

	conv := &ConversationContext{}
	answer, err := svc.Answer(context.Background(), conv, "revenue for mining?")
	require.NoError(t, err)

	assert.NotEmpty(t, answer.RunID)
	assert.Equal(t, models.IntentRevenue, answer.Kind)
	require.NotNil(t, answer.Metrics)
	require.NotNil(t, answer.Metrics.Revenue)

	rev := answer.Metrics.Revenue
	// Mining orders: 1000 + 500 + 300 billed, 800 + 200 collected; the
	// orphan order WO-4 still counts since revenue is order-side.
	require.NotNil(t, rev.TotalBilled.Value)
	assert.Equal(t, 1800.0, *rev.TotalBilled.Value)
	assert.Equal(t, 3, rev.TotalBilled.ValidCount)
	assert.Equal(t, 4, rev.TotalBilled.TotalCount)

	require.NotNil(t, rev.TotalCollected.Value)
	assert.Equal(t, 1000.0, *rev.TotalCollected.Value)

	require.NotNil(t, rev.CollectionRate)
	assert.InDelta(t, 1000.0/1800.0, *rev.CollectionRate, 0.0001)

	// Fixture missing rates above 10% must all be surfaced.
	categories := map[string]bool{}
	missingFields := map[string]bool{}
	for _, issue := range answer.QualityIssues {
		categories[issue.Category] = true
		if issue.Category == models.QualityMissing {
			missingFields[issue.Field] = true
		}
	}
	assert.True(t, missingFields["billed_value"])
	assert.True(t, missingFields["collected_value"])
	assert.True(t, missingFields["order_date"])
	assert.True(t, categories[models.QualityOrphan], "orphan order WO-4 exceeds the 10%% threshold")

	assert.Equal(t, "Mining revenue ...", answer.Narration)
	// The merged filters become the next turn's carry-over.
	assert.Equal(t, "mining", conv.PreviousFilters.Sector)
}

func TestAnswer_SectorComparisonUsesJoin(t *testing.T) {
	svc := newTestService(t,
		&fakeFetcher{boards: fixtureBoards()},
		&fakeClassifier{intent: &models.Intent{Kind: models.IntentSector}},
		&fakeNarrator{text: "ok"},
		nil,
	)

	answer, err := svc.Answer(context.Background(), nil, "compare sectors")
	require.NoError(t, err)
	require.NotNil(t, answer.Metrics)
	require.Len(t, answer.Metrics.Sectors, 2)

	// Mining pipeline 60000 beats energy 7000.
	mining := answer.Metrics.Sectors[0]
	assert.Equal(t, "mining", mining.Sector)
	assert.Equal(t, 2, mining.DealCount)
	assert.Equal(t, 60000.0, mining.PipelineValue.Float())
	// D-001's two orders billed 1500; D-003 has an order with no billing.
	assert.Equal(t, 1500.0, mining.BilledRevenue.Float())
}

func TestAnswer_Clarification(t *testing.T) {
	svc := newTestService(t,
		&fakeFetcher{boards: fixtureBoards()},
		&fakeClassifier{intent: &models.Intent{
			ClarificationNeeded: true,
			ClarifyingQuestions: []string{"Which period?"},
		}},
		&fakeNarrator{text: "unused"},
		nil,
	)

	fetcher := svc.fetcher.(*fakeFetcher)
	conv := &ConversationContext{PreviousFilters: models.Filters{Sector: "mining"}}

	answer, err := svc.Answer(context.Background(), conv, "how about trends?")
	require.NoError(t, err)
	assert.True(t, answer.ClarificationNeeded)
	assert.Equal(t, []string{"Which period?"}, answer.ClarifyingQuestions)
	assert.Nil(t, answer.Metrics)
	// No boards are touched and the carried filters stay untouched.
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, "mining", conv.PreviousFilters.Sector)
}

func TestAnswer_FilterCarryAcrossTurns(t *testing.T) {
	classifier := &fakeClassifier{intent: &models.Intent{
		Kind:    models.IntentRevenue,
		Filters: models.Filters{Sector: "mining"},
	}}
	svc := newTestService(t, &fakeFetcher{boards: fixtureBoards()}, classifier, &fakeNarrator{text: "ok"}, nil)

	conv := &ConversationContext{}
	_, err := svc.Answer(context.Background(), conv, "revenue for mining?")
	require.NoError(t, err)

	// Second turn: new metric, no sector mentioned.
	classifier.intent = &models.Intent{Kind: models.IntentPipeline}
	answer, err := svc.Answer(context.Background(), conv, "and the pipeline?")
	require.NoError(t, err)

	assert.Equal(t, "mining", answer.Filters.Sector, "sector carries into the follow-up")
	require.NotNil(t, answer.Metrics.Pipeline)
	assert.Equal(t, 2, answer.Metrics.Pipeline.TotalDeals, "only the two mining deals")
}

func TestAnswer_NarrationIsBestEffort(t *testing.T) {
	svc := newTestService(t,
		&fakeFetcher{boards: fixtureBoards()},
		&fakeClassifier{intent: &models.Intent{Kind: models.IntentRisk}},
		&fakeNarrator{err: stderrors.NewLLMSynthesisFailedError(fmt.Errorf("api down"))},
		nil,
	)

	answer, err := svc.Answer(context.Background(), nil, "what's at risk?")
	require.NoError(t, err, "narration failure must not fail the query")
	assert.Empty(t, answer.Narration)
	require.NotNil(t, answer.Metrics.Risk)
}

func TestAnswer_HardErrorsNameTheStage(t *testing.T) {
	t.Run("Classification failure", func(t *testing.T) {
		svc := newTestService(t,
			&fakeFetcher{boards: fixtureBoards()},
			&fakeClassifier{err: stderrors.NewIntentParsingFailedError(fmt.Errorf("api down"))},
			&fakeNarrator{text: "unused"},
			nil,
		)
		_, err := svc.Answer(context.Background(), nil, "anything")
		require.Error(t, err)
		assert.Equal(t, "classify", stderrors.StageOf(err))
	})

	t.Run("Board fetch failure", func(t *testing.T) {
		svc := newTestService(t,
			&fakeFetcher{err: stderrors.NewBoardFetchFailedError("deals-board", fmt.Errorf("api down"))},
			&fakeClassifier{intent: &models.Intent{Kind: models.IntentPipeline}},
			&fakeNarrator{text: "unused"},
			nil,
		)
		_, err := svc.Answer(context.Background(), nil, "anything")
		require.Error(t, err)
		assert.Equal(t, "fetch", stderrors.StageOf(err))
	})
}

// ==========================================
// SNAPSHOT CACHE
// ==========================================

func TestSnapshotCaching(t *testing.T) {
	mr := miniredis.RunT(t)
	snapshotCache, err := cache.New(config.RedisConfig{Address: mr.Addr()}, time.Hour)
	require.NoError(t, err)

	fetcher := &fakeFetcher{boards: fixtureBoards()}
	svc := newTestService(t, fetcher,
		&fakeClassifier{intent: &models.Intent{Kind: models.IntentPipeline}},
		&fakeNarrator{text: "ok"}, snapshotCache)

	_, err = svc.Answer(context.Background(), nil, "pipeline?")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls, "both boards fetched once")

	// Second query inside the freshness window is served from the cache.
	_, err = svc.Answer(context.Background(), nil, "pipeline again?")
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)

	// Past the window the boards are fetched again.
	mr.FastForward(2 * time.Hour)
	_, err = svc.Answer(context.Background(), nil, "pipeline once more?")
	require.NoError(t, err)
	assert.Equal(t, 4, fetcher.calls)
}

func TestInvalidateSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	snapshotCache, err := cache.New(config.RedisConfig{Address: mr.Addr()}, time.Hour)
	require.NoError(t, err)

	fetcher := &fakeFetcher{boards: fixtureBoards()}
	svc := newTestService(t, fetcher,
		&fakeClassifier{intent: &models.Intent{Kind: models.IntentPipeline}},
		&fakeNarrator{text: "ok"}, snapshotCache)

	_, err = svc.Answer(context.Background(), nil, "pipeline?")
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateSnapshot(context.Background()))

	_, err = svc.Answer(context.Background(), nil, "pipeline?")
	require.NoError(t, err)
	assert.Equal(t, 4, fetcher.calls)
}
