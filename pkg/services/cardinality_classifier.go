package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

// CardinalityClassifier computes exact linkage counts for retained candidates.
type CardinalityClassifier interface {
	// Classify returns a copy of candidates in which every candidate at or above
	// the minimum confidence carries a CardinalityResult and exact type, or type
	// "error" with the driver message. Candidates are never dropped.
	Classify(ctx context.Context, candidates []models.RelationshipCandidate) ([]models.RelationshipCandidate, []models.SessionError)
}

// CardinalityConfig controls classification.
type CardinalityConfig struct {
	Schema        string
	AnchorColumn  string
	MinConfidence float64 // default 0.5
	Batched       bool    // one UNION ALL statement instead of one per candidate
}

type cardinalityClassifier struct {
	exec   datasource.SQLExecutor
	cfg    CardinalityConfig
	logger *zap.Logger
}

// NewCardinalityClassifier creates a CardinalityClassifier.
func NewCardinalityClassifier(exec datasource.SQLExecutor, cfg CardinalityConfig, logger *zap.Logger) CardinalityClassifier {
	return &cardinalityClassifier{
		exec:   exec,
		cfg:    cfg,
		logger: logger.Named("cardinality-classifier"),
	}
}

var _ CardinalityClassifier = (*cardinalityClassifier)(nil)

func (c *cardinalityClassifier) Classify(ctx context.Context, candidates []models.RelationshipCandidate) ([]models.RelationshipCandidate, []models.SessionError) {
	out := slices.Clone(candidates)

	var eligible []int
	for i, cand := range out {
		if cand.Confidence >= c.cfg.MinConfidence {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return out, nil
	}

	counts := map[int]models.CardinalityResult{}
	if c.cfg.Batched && len(eligible) > 1 {
		var err error
		counts, err = c.classifyBatch(ctx, out, eligible)
		if err != nil {
			c.logger.Warn("Batched cardinality query failed, falling back to per-candidate queries",
				zap.Int("candidates", len(eligible)),
				zap.Error(err))
			counts = map[int]models.CardinalityResult{}
		}
	}

	var failures []models.SessionError
	for _, i := range eligible {
		result, ok := counts[i]
		if !ok {
			var err error
			result, err = c.classifyOne(ctx, out[i])
			if err != nil {
				msg := errorText(err)
				out[i].RelationshipType = models.RelationshipError
				out[i].Error = msg
				out[i].Cardinality = nil
				failures = append(failures, models.SessionError{
					Phase:   models.PhaseConfidenceAnalyzed,
					Kind:    models.ErrorKindCardinality,
					Subject: out[i].Key(),
					Message: msg,
				})
				c.logger.Warn("Cardinality query failed",
					zap.String("candidate", out[i].Key()),
					zap.Error(err))
				continue
			}
		}
		out[i].Cardinality = &result
		out[i].RelationshipType = result.RelationshipType()
	}

	c.logger.Info("Classified cardinality",
		zap.Int("eligible", len(eligible)),
		zap.Int("failures", len(failures)),
		zap.Bool("batched", c.cfg.Batched))

	return out, failures
}

func (c *cardinalityClassifier) classifyOne(ctx context.Context, cand models.RelationshipCandidate) (models.CardinalityResult, error) {
	rows, err := c.exec.ExecuteSQL(ctx, c.cardinalityQuery(cand))
	if err != nil {
		return models.CardinalityResult{}, err
	}
	if len(rows) == 0 {
		return models.CardinalityResult{}, fmt.Errorf("cardinality query returned no rows")
	}
	return models.NewCardinalityResult(
		datasource.Int64(rows[0], "max_links_from"),
		datasource.Int64(rows[0], "max_links_to"),
	), nil
}

// classifyBatch computes all eligible candidates in one statement. Rows are
// tagged with the candidate's index; missing rows are classified individually.
func (c *cardinalityClassifier) classifyBatch(ctx context.Context, cands []models.RelationshipCandidate, eligible []int) (map[int]models.CardinalityResult, error) {
	parts := make([]string, 0, len(eligible))
	for _, i := range eligible {
		parts = append(parts, fmt.Sprintf("SELECT %d AS candidate_index, q.max_links_from, q.max_links_to FROM (%s) q",
			i, c.cardinalityQuery(cands[i])))
	}

	rows, err := c.exec.ExecuteSQL(ctx, strings.Join(parts, "\nUNION ALL\n"))
	if err != nil {
		return nil, err
	}

	counts := make(map[int]models.CardinalityResult, len(rows))
	for _, row := range rows {
		idx := int(datasource.Int64(row, "candidate_index"))
		counts[idx] = models.NewCardinalityResult(
			datasource.Int64(row, "max_links_from"),
			datasource.Int64(row, "max_links_to"),
		)
	}
	return counts, nil
}

// cardinalityQuery returns a single-row query yielding max_links_from and max_links_to.
// maxLinksTo counts source rows per referenced value, restricted to values
// present in the target anchor set.
func (c *cardinalityClassifier) cardinalityQuery(cand models.RelationshipCandidate) string {
	src := postgres.QualifiedTableName(c.cfg.Schema, cand.FromTable)
	tgt := postgres.QualifiedTableName(c.cfg.Schema, cand.ToTable)
	col := postgres.QuoteIdentifier(cand.FromField)
	anchor := postgres.QuoteIdentifier(cand.ToField)

	if cand.IsArray() {
		return fmt.Sprintf(`
			SELECT
				COALESCE((SELECT MAX(cardinality(s.%[1]s)) FROM %[2]s s WHERE s.%[1]s IS NOT NULL), 0)::bigint AS max_links_from,
				COALESCE((
					SELECT MAX(g.c) FROM (
						SELECT COUNT(*) AS c
						FROM %[2]s s
						CROSS JOIN LATERAL (SELECT DISTINCT e FROM unnest(s.%[1]s::text[]) AS u(e)) el
						WHERE s.%[1]s IS NOT NULL
						  AND el.e IN (SELECT t.%[4]s::text FROM %[3]s t)
						GROUP BY el.e
					) g
				), 0)::bigint AS max_links_to`,
			col, src, tgt, anchor)
	}

	return fmt.Sprintf(`
		SELECT
			1::bigint AS max_links_from,
			COALESCE((
				SELECT MAX(g.c) FROM (
					SELECT COUNT(*) AS c
					FROM %[2]s s
					WHERE s.%[1]s IS NOT NULL
					  AND s.%[1]s::text IN (SELECT t.%[4]s::text FROM %[3]s t)
					GROUP BY s.%[1]s
				) g
			), 0)::bigint AS max_links_to`,
		col, src, tgt, anchor)
}
