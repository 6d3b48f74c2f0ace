// internal/pipeline/snapshot.go
package pipeline

import (
	"context"
	stderrs "errors"
	"time"

	"intelliquery/internal/common/cache"
	"intelliquery/internal/common/metrics"
	"intelliquery/internal/models"
)

// Snapshot is one consistent view of both boards: normalized tables, the
// joined table, and every quality issue found along the way. Metrics are
// always re-derived from a snapshot; nothing analytic is cached.
type Snapshot struct {
	Deals  []models.Deal
	Orders []models.WorkOrder
	Table  models.JoinedTable
	Issues []models.QualityIssue
}

// snapshot assembles the current snapshot, serving raw board items from the
// cache inside the freshness window and fetching past it. Normalization and
// joining always run fresh so threshold changes take effect immediately.
func (s *Service) snapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	}()

	dealItems, err := s.boardItems(ctx, s.boards.DealBoardID)
	if err != nil {
		return nil, err
	}
	orderItems, err := s.boardItems(ctx, s.boards.WorkOrderBoardID)
	if err != nil {
		return nil, err
	}

	deals, dealIssues, err := s.normalizer.NormalizeDeals(dealItems)
	if err != nil {
		return nil, err
	}
	orders, orderIssues, err := s.normalizer.NormalizeWorkOrders(orderItems)
	if err != nil {
		return nil, err
	}

	table, joinIssues := s.joiner.Join(deals, orders)

	issues := make([]models.QualityIssue, 0, len(dealIssues)+len(orderIssues)+len(joinIssues))
	issues = append(issues, dealIssues...)
	issues = append(issues, orderIssues...)
	issues = append(issues, joinIssues...)

	return &Snapshot{
		Deals:  deals,
		Orders: orders,
		Table:  table,
		Issues: issues,
	}, nil
}

func (s *Service) boardItems(ctx context.Context, boardID string) ([]models.RawItem, error) {
	key := "intelliquery:board:" + boardID

	if s.cache != nil {
		var items []models.RawItem
		err := s.cache.GetJSON(ctx, key, &items)
		if err == nil {
			metrics.SnapshotCacheHits.WithLabelValues("hit").Inc()
			return items, nil
		}
		if !stderrs.Is(err, cache.ErrMiss) {
			// A broken cache degrades to a fetch, it never fails the query.
			s.logger.Warn("snapshot cache unavailable", map[string]interface{}{
				"boardId": boardID,
				"error":   err.Error(),
			})
		}
		metrics.SnapshotCacheHits.WithLabelValues("miss").Inc()
	}

	items, err := s.fetcher.FetchBoardItems(ctx, boardID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, items); err != nil {
			s.logger.Warn("snapshot cache write failed", map[string]interface{}{
				"boardId": boardID,
				"error":   err.Error(),
			})
		}
	}
	return items, nil
}

// InvalidateSnapshot drops both boards' cached items, forcing the next query
// to fetch fresh data.
func (s *Service) InvalidateSnapshot(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx,
		"intelliquery:board:"+s.boards.DealBoardID,
		"intelliquery:board:"+s.boards.WorkOrderBoardID,
	)
}
