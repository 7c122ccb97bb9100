package assessment

import (
	"context"
	"log/slog"

	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/scoring"
)

// testCache memoizes definitions for the duration of one read.
type testCache struct {
	svc   *Service
	tests map[int64]*model.TestDefinition
}

func newTestCache(s *Service) *testCache {
	return &testCache{svc: s, tests: make(map[int64]*model.TestDefinition)}
}

func (c *testCache) get(ctx context.Context, id int64) (*model.TestDefinition, error) {
	if t, ok := c.tests[id]; ok {
		return t, nil
	}
	t, err := c.svc.tests.GetTest(ctx, c.svc.kind, id)
	if err != nil {
		return nil, err
	}
	c.tests[id] = t
	return t, nil
}

// enrich recomputes TotalPoints, Percentage, the breakdown and the recommended
// level from the current definition so edits to point values show up on
// results scored against an older version. Score is never touched. When the
// definition cannot be loaded the stored values are kept.
func (s *Service) enrich(ctx context.Context, rec *model.ResultRecord, cache *testCache) {
	test, err := cache.get(ctx, rec.TestID)
	if err != nil || test == nil {
		slog.Warn("cannot enrich result, returning stored values",
			"result_id", rec.ID, "test_id", rec.TestID, "error", err)
		return
	}
	m := scoring.Marks{Questions: rec.EssayMarks, Oral: rec.OralReviewMarks}
	g := scoring.Grade(*test, rec.Answers, m)
	rec.TotalPoints = g.TotalPossible
	rec.Percentage = scoring.Percentage(rec.Score, rec.TotalPoints)
	rec.Breakdown = g.Breakdown
	rec.RecommendedLevel = scoring.RecommendedLevel(rec.Percentage, s.threshold, scoring.AwaitingManual(*test, m))
}

// Exporter reads results joined with student names and test titles.
type Exporter interface {
	ExportResults(ctx context.Context, kind model.Kind) ([]model.ExportedResult, error)
}

// Export returns every result of the service's kind, enriched, with student
// names and test titles for certificate issuance and reporting.
func (s *Service) Export(ctx context.Context, src Exporter) ([]model.ExportedResult, error) {
	rows, err := src.ExportResults(ctx, s.kind)
	if err != nil {
		return nil, err
	}
	cache := newTestCache(s)
	for i := range rows {
		s.enrich(ctx, &rows[i].ResultRecord, cache)
	}
	return rows, nil
}
