package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/tablelink/pkg/models"
	"github.com/ekaya-inc/tablelink/pkg/workerpool"
)

// RelationshipAnalyzer scores every (source column, target table) pair.
type RelationshipAnalyzer interface {
	// Analyze returns retained candidates sorted by (fromTable, fromField, toTable).
	// Per-pair SQL failures are counted and reported, never returned as an error.
	Analyze(ctx context.Context, tables []models.TableDescriptor) *AnalyzerOutput
}

// AnalyzerOutput is the result of scoring all pairs.
type AnalyzerOutput struct {
	Candidates      []models.RelationshipCandidate
	PairsEvaluated  int
	ColumnsAnalyzed int
	ScoringFailures []models.SessionError
}

// AnalyzerConfig controls candidate scoring.
type AnalyzerConfig struct {
	Schema        string
	AnchorColumn  string
	MinConfidence float64 // candidates at or below are discarded
}

type relationshipAnalyzer struct {
	exec   datasource.SQLExecutor
	pool   *workerpool.Pool
	cfg    AnalyzerConfig
	logger *zap.Logger
}

// NewRelationshipAnalyzer creates a RelationshipAnalyzer. Scoring queries run
// through pool; each query borrows its own connection from exec.
func NewRelationshipAnalyzer(exec datasource.SQLExecutor, pool *workerpool.Pool, cfg AnalyzerConfig, logger *zap.Logger) RelationshipAnalyzer {
	if pool == nil {
		pool = workerpool.New(workerpool.DefaultConfig(), logger)
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = MinRetainedConfidence
	}
	return &relationshipAnalyzer{
		exec:   exec,
		pool:   pool,
		cfg:    cfg,
		logger: logger.Named("relationship-analyzer"),
	}
}

var _ RelationshipAnalyzer = (*relationshipAnalyzer)(nil)

// scoringPair is one unit of analysis.
type scoringPair struct {
	source models.ColumnDescriptor
	target models.TableDescriptor
}

func (p scoringPair) key(anchor string) string {
	return fmt.Sprintf("%s.%s->%s.%s", p.source.Table, p.source.Column, p.target.Name, anchor)
}

func (a *relationshipAnalyzer) Analyze(ctx context.Context, tables []models.TableDescriptor) *AnalyzerOutput {
	start := time.Now()
	out := &AnalyzerOutput{}

	var pairs []scoringPair
	for _, src := range tables {
		out.ColumnsAnalyzed += len(src.Columns)
		for _, col := range src.Columns {
			for _, tgt := range tables {
				if tgt.Name == src.Name || !tgt.HasAnchor {
					continue
				}
				pairs = append(pairs, scoringPair{source: col, target: tgt})
			}
		}
	}
	out.PairsEvaluated = len(pairs)

	a.logger.Info("Scoring relationship candidates",
		zap.Int("tables", len(tables)),
		zap.Int("pairs", len(pairs)),
		zap.Int("max_concurrent", a.pool.MaxConcurrent()))

	items := make([]workerpool.WorkItem[models.RelationshipCandidate], len(pairs))
	for i, p := range pairs {
		items[i] = workerpool.WorkItem[models.RelationshipCandidate]{
			ID: p.key(a.cfg.AnchorColumn),
			Execute: func(ctx context.Context) (models.RelationshipCandidate, error) {
				return a.scorePair(ctx, p)
			},
		}
	}

	results := workerpool.Process(ctx, a.pool, items, func(completed, total int) {
		if completed%100 == 0 || completed == total {
			a.logger.Debug("Scoring progress", zap.Int("completed", completed), zap.Int("total", total))
		}
	})

	for _, r := range results {
		if r.Err != nil {
			// A failed pair scores 0 / unknown and therefore never survives the filter.
			a.logger.Warn("Scoring query failed",
				zap.String("pair", r.ID),
				zap.Error(r.Err))
			out.ScoringFailures = append(out.ScoringFailures, models.SessionError{
				Phase:   models.PhaseConfidenceAnalyzed,
				Kind:    models.ErrorKindScoring,
				Subject: r.ID,
				Message: errorText(r.Err),
			})
			continue
		}
		if r.Result.Confidence <= a.cfg.MinConfidence {
			continue
		}
		out.Candidates = append(out.Candidates, r.Result)
	}

	slices.SortStableFunc(out.Candidates, func(x, y models.RelationshipCandidate) int {
		if c := strings.Compare(x.FromTable, y.FromTable); c != 0 {
			return c
		}
		if c := strings.Compare(x.FromField, y.FromField); c != 0 {
			return c
		}
		return strings.Compare(x.ToTable, y.ToTable)
	})

	a.logger.Info("Scored relationship candidates",
		zap.Int("retained", len(out.Candidates)),
		zap.Int("failures", len(out.ScoringFailures)),
		zap.Duration("elapsed", time.Since(start)))

	return out
}

// scorePair runs the statistics query for one pair and derives its confidence.
func (a *relationshipAnalyzer) scorePair(ctx context.Context, p scoringPair) (models.RelationshipCandidate, error) {
	candidate := models.RelationshipCandidate{
		FromTable:        p.source.Table,
		FromField:        p.source.Column,
		ToTable:          p.target.Name,
		ToField:          a.cfg.AnchorColumn,
		RelationshipType: models.RelationshipUnknown,
	}

	var stats models.Statistics
	var err error
	switch p.source.Kind() {
	case models.FieldKindArray:
		stats, err = a.arrayStatistics(ctx, p)
	default:
		stats, err = a.scalarStatistics(ctx, p)
	}
	if err != nil {
		return candidate, err
	}

	candidate.Statistics = stats
	candidate.Confidence = ScoreConfidence(stats)
	if candidate.Confidence > 0 {
		candidate.RelationshipType = ProvisionalType(stats)
	}
	return candidate, nil
}

// arrayStatistics: validRefs counts non-null rows with at least one element
// present in the target anchor set; integrity = validRefs / nonNull.
func (a *relationshipAnalyzer) arrayStatistics(ctx context.Context, p scoringPair) (models.Statistics, error) {
	col := postgres.QuoteIdentifier(p.source.Column)
	anchor := postgres.QuoteIdentifier(a.cfg.AnchorColumn)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*)::bigint AS total_rows,
			COUNT(s.%[1]s)::bigint AS non_null,
			COUNT(*) FILTER (
				WHERE s.%[1]s IS NOT NULL
				  AND EXISTS (SELECT 1 FROM %[3]s t WHERE t.%[4]s::text = ANY(s.%[1]s::text[]))
			)::bigint AS valid_refs,
			COUNT(DISTINCT s.%[1]s)::bigint AS distinct_count
		FROM %[2]s s`,
		col, postgres.QualifiedTableName(a.cfg.Schema, p.source.Table), postgres.QualifiedTableName(a.cfg.Schema, p.target.Name), anchor)

	row, err := a.singleRow(ctx, query)
	if err != nil {
		return models.Statistics{}, err
	}

	stats := models.Statistics{
		FieldKind:           models.FieldKindArray,
		TotalRows:           datasource.Int64(row, "total_rows"),
		NonNullCount:        datasource.Int64(row, "non_null"),
		MatchedOrValidCount: datasource.Int64(row, "valid_refs"),
		DistinctCount:       datasource.Int64(row, "distinct_count"),
	}
	stats.ReferentialIntegrityPercent = percent(stats.MatchedOrValidCount, stats.NonNullCount)
	stats.DistinctnessPercent = percent(stats.DistinctCount, stats.NonNullCount)
	return stats, nil
}

// scalarStatistics: matched counts distinct non-null values present in the
// target anchor set; integrity = matched / distinct.
func (a *relationshipAnalyzer) scalarStatistics(ctx context.Context, p scoringPair) (models.Statistics, error) {
	col := postgres.QuoteIdentifier(p.source.Column)
	anchor := postgres.QuoteIdentifier(a.cfg.AnchorColumn)

	query := fmt.Sprintf(`
		WITH src AS (
			SELECT s.%[1]s::text AS v FROM %[2]s s
		)
		SELECT
			COUNT(*)::bigint AS total_rows,
			COUNT(v)::bigint AS non_null,
			COUNT(DISTINCT v)::bigint AS distinct_count,
			(
				SELECT COUNT(DISTINCT m.v)
				FROM src m
				WHERE m.v IS NOT NULL
				  AND EXISTS (SELECT 1 FROM %[3]s t WHERE t.%[4]s::text = m.v)
			)::bigint AS matched
		FROM src`,
		col, postgres.QualifiedTableName(a.cfg.Schema, p.source.Table), postgres.QualifiedTableName(a.cfg.Schema, p.target.Name), anchor)

	row, err := a.singleRow(ctx, query)
	if err != nil {
		return models.Statistics{}, err
	}

	stats := models.Statistics{
		FieldKind:           models.FieldKindScalar,
		TotalRows:           datasource.Int64(row, "total_rows"),
		NonNullCount:        datasource.Int64(row, "non_null"),
		MatchedOrValidCount: datasource.Int64(row, "matched"),
		DistinctCount:       datasource.Int64(row, "distinct_count"),
	}
	stats.ReferentialIntegrityPercent = percent(stats.MatchedOrValidCount, stats.DistinctCount)
	stats.DistinctnessPercent = percent(stats.DistinctCount, stats.NonNullCount)
	return stats, nil
}

func (a *relationshipAnalyzer) singleRow(ctx context.Context, query string) (map[string]any, error) {
	rows, err := a.exec.ExecuteSQL(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("statistics query returned no rows")
	}
	return rows[0], nil
}
