// internal/pipeline/service.go

// Package pipeline wires the query stages together: classify the question,
// resolve a route, assemble a board snapshot, compute the routed metric
// family, and narrate the result. The service itself holds no per-query
// state; conversational filter carry lives in the caller-owned context.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"intelliquery/internal/analytics"
	"intelliquery/internal/common/cache"
	"intelliquery/internal/common/config"
	"intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/common/metrics"
	"intelliquery/internal/intent"
	"intelliquery/internal/models"
)

// BoardFetcher fetches raw items from one board.
type BoardFetcher interface {
	FetchBoardItems(ctx context.Context, boardID string) ([]models.RawItem, error)
}

// IntentClassifier turns a question into a structured intent.
type IntentClassifier interface {
	Classify(ctx context.Context, question string, previous models.Filters) (*models.Intent, error)
}

// InsightNarrator renders computed metrics as prose.
type InsightNarrator interface {
	Narrate(ctx context.Context, question string, kind models.IntentKind, metricsResult interface{}, issues []models.QualityIssue) (string, error)
}

// Normalizer converts raw board items into canonical rows.
type Normalizer interface {
	NormalizeDeals(items []models.RawItem) ([]models.Deal, []models.QualityIssue, error)
	NormalizeWorkOrders(items []models.RawItem) ([]models.WorkOrder, []models.QualityIssue, error)
}

// Joiner combines the two canonical tables.
type Joiner interface {
	Join(deals []models.Deal, orders []models.WorkOrder) (models.JoinedTable, []models.QualityIssue)
}

// ConversationContext is the caller-owned state carried between turns of one
// conversation. The service reads the previous filters and writes back the
// merged ones after a successful run.
type ConversationContext struct {
	PreviousFilters models.Filters
}

// Answer is the outcome of one query.
type Answer struct {
	RunID               string                `json:"run_id"`
	Kind                models.IntentKind     `json:"intent_kind,omitempty"`
	Filters             models.Filters        `json:"filters"`
	Metrics             *analytics.Result     `json:"metrics,omitempty"`
	QualityIssues       []models.QualityIssue `json:"quality_issues,omitempty"`
	Narration           string                `json:"narration,omitempty"`
	ClarificationNeeded bool                  `json:"clarification_needed"`
	ClarifyingQuestions []string              `json:"clarifying_questions,omitempty"`
}

// Service executes queries end to end.
type Service struct {
	boards     config.BoardsConfig
	fetcher    BoardFetcher
	classifier IntentClassifier
	narrator   InsightNarrator
	normalizer Normalizer
	joiner     Joiner
	engine     *analytics.Engine
	cache      *cache.SnapshotCache // optional
	logger     logger.Logger
}

func NewService(
	boards config.BoardsConfig,
	fetcher BoardFetcher,
	classifier IntentClassifier,
	narrator InsightNarrator,
	normalizer Normalizer,
	joiner Joiner,
	engine *analytics.Engine,
	snapshotCache *cache.SnapshotCache,
	log logger.Logger,
) *Service {
	return &Service{
		boards:     boards,
		fetcher:    fetcher,
		classifier: classifier,
		narrator:   narrator,
		normalizer: normalizer,
		joiner:     joiner,
		engine:     engine,
		cache:      snapshotCache,
		logger:     log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Answer runs one query: classify, route, snapshot, compute, narrate. Hard
// errors carry the failed stage; data-quality findings never abort the run.
func (s *Service) Answer(ctx context.Context, conv *ConversationContext, question string) (*Answer, error) {
	runID := uuid.New().String()
	log := s.logger.WithFields(map[string]interface{}{"runId": runID})
	log.Info("answering query", map[string]interface{}{"question": question})

	var previous models.Filters
	if conv != nil {
		previous = conv.PreviousFilters
	}

	classified, err := s.timedStage("classify", func() (*models.Intent, error) {
		return s.classifier.Classify(ctx, question, previous)
	})
	if err != nil {
		metrics.QueriesFailed.WithLabelValues("classify", errCode(err)).Inc()
		return nil, err
	}

	route := intent.ResolveRoute(classified, previous)
	if route.ClarificationNeeded {
		log.Info("clarification needed", map[string]interface{}{
			"questions": route.ClarifyingQuestions,
		})
		return &Answer{
			RunID:               runID,
			ClarificationNeeded: true,
			ClarifyingQuestions: route.ClarifyingQuestions,
		}, nil
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		// Either the fetch or a board's normalization failed; the error
		// itself names the stage.
		metrics.QueriesFailed.WithLabelValues(errors.StageOf(err), errCode(err)).Inc()
		return nil, err
	}

	result := s.compute(route, snap)

	answer := &Answer{
		RunID:         runID,
		Kind:          route.Kind,
		Filters:       route.Filters,
		Metrics:       result,
		QualityIssues: snap.Issues,
	}

	// Narration is best-effort: metrics stand on their own when it fails.
	narration, err := s.narrator.Narrate(ctx, question, route.Kind, result, snap.Issues)
	if err != nil {
		log.Warn("narration unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		answer.Narration = narration
	}

	if conv != nil {
		conv.PreviousFilters = route.Filters
	}
	metrics.QueriesProcessed.WithLabelValues(string(route.Kind)).Inc()
	log.Info("query answered", map[string]interface{}{
		"kind":   route.Kind,
		"issues": len(snap.Issues),
	})
	return answer, nil
}

func (s *Service) compute(route intent.Route, snap *Snapshot) *analytics.Result {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	}()

	var result analytics.Result
	switch route.Kind {
	case models.IntentPipeline:
		m := s.engine.Pipeline(snap.Deals, route.Filters)
		result.Pipeline = &m
	case models.IntentRevenue:
		m := s.engine.Revenue(snap.Orders, route.Filters)
		result.Revenue = &m
	case models.IntentRisk:
		m := s.engine.Risk(snap.Deals, snap.Orders, route.Filters)
		result.Risk = &m
	case models.IntentSector:
		result.Sectors = s.engine.Sector(snap.Table, route.Filters)
	case models.IntentUtilization:
		m := s.engine.Utilization(snap.Table, route.Filters)
		result.Utilization = &m
	case models.IntentOperational:
		m := s.engine.Operational(snap.Deals, route.Filters)
		result.Operational = &m
	}
	return &result
}

func (s *Service) timedStage(stage string, fn func() (*models.Intent, error)) (*models.Intent, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}()
	return fn()
}

func errCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}
