package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

// Heuristic fallback used when a candidate has no exact cardinality.
const (
	junctionMaxDistinctnessPercent = 30
	junctionMinMatched             = 10
)

// JunctionTableSynthesizer decides which candidates need association tables and builds them.
type JunctionTableSynthesizer interface {
	// DetectJunctionNeeds splits qualifying candidates into junction plans and
	// direct relationships. It issues no SQL.
	DetectJunctionNeeds(candidates []models.RelationshipCandidate) ([]models.JunctionTablePlan, []models.RelationshipCandidate)

	// CreateJunctionTables creates and populates each plan independently.
	// Re-running a plan is a no-op: the table is created IF NOT EXISTS and rows
	// are inserted ON CONFLICT DO NOTHING.
	CreateJunctionTables(ctx context.Context, plans []models.JunctionTablePlan) []models.JunctionTableResult
}

// JunctionConfig controls detection and naming.
type JunctionConfig struct {
	Schema        string
	AnchorColumn  string
	Suffix        string  // default "_junction"
	MinConfidence float64 // default 0.7
}

type junctionTableSynthesizer struct {
	exec   datasource.SQLExecutor
	cfg    JunctionConfig
	logger *zap.Logger
}

// NewJunctionTableSynthesizer creates a JunctionTableSynthesizer.
func NewJunctionTableSynthesizer(exec datasource.SQLExecutor, cfg JunctionConfig, logger *zap.Logger) JunctionTableSynthesizer {
	if cfg.Suffix == "" {
		cfg.Suffix = "_junction"
	}
	return &junctionTableSynthesizer{
		exec:   exec,
		cfg:    cfg,
		logger: logger.Named("junction-synthesizer"),
	}
}

var _ JunctionTableSynthesizer = (*junctionTableSynthesizer)(nil)

// NeedsJunctionTable reports whether a candidate is many-to-many over an array
// column: exact counts both above one, or, without exact counts, low
// distinctness with many matched references. Candidates whose cardinality
// query failed are never routed to a junction table.
func NeedsJunctionTable(c models.RelationshipCandidate) bool {
	if !c.IsArray() || c.RelationshipType == models.RelationshipError {
		return false
	}
	if c.Cardinality != nil {
		return c.Cardinality.MaxLinksFrom > 1 && c.Cardinality.MaxLinksTo > 1
	}
	return c.Statistics.DistinctnessPercent < junctionMaxDistinctnessPercent &&
		c.Statistics.MatchedOrValidCount > junctionMinMatched
}

func (j *junctionTableSynthesizer) DetectJunctionNeeds(candidates []models.RelationshipCandidate) ([]models.JunctionTablePlan, []models.RelationshipCandidate) {
	plans := make([]models.JunctionTablePlan, 0)
	direct := make([]models.RelationshipCandidate, 0)

	for _, c := range candidates {
		if c.Confidence < j.cfg.MinConfidence {
			continue
		}
		if NeedsJunctionTable(c) {
			plans = append(plans, models.NewJunctionTablePlan(c, j.cfg.AnchorColumn, j.cfg.Suffix))
			continue
		}
		direct = append(direct, c)
	}

	j.logger.Info("Detected junction needs",
		zap.Int("junction_tables", len(plans)),
		zap.Int("direct", len(direct)))

	return plans, direct
}

func (j *junctionTableSynthesizer) CreateJunctionTables(ctx context.Context, plans []models.JunctionTablePlan) []models.JunctionTableResult {
	results := make([]models.JunctionTableResult, 0, len(plans))

	for _, plan := range plans {
		start := time.Now()
		inserted, err := j.createOne(ctx, plan)
		if err != nil {
			j.logger.Warn("Junction table failed",
				zap.String("table", plan.JunctionTableName),
				zap.Error(err))
			results = append(results, models.JunctionTableResult{
				Plan:    plan,
				Outcome: models.OutcomeFailed,
				Error:   errorText(err),
			})
			continue
		}

		j.logger.Info("Junction table ready",
			zap.String("table", plan.JunctionTableName),
			zap.Int64("rows_inserted", inserted),
			zap.Duration("elapsed", time.Since(start)))
		results = append(results, models.JunctionTableResult{
			Plan:         plan,
			Outcome:      models.OutcomeSucceeded,
			RowsInserted: inserted,
		})
	}

	return results
}

func (j *junctionTableSynthesizer) createOne(ctx context.Context, plan models.JunctionTablePlan) (int64, error) {
	fromType, err := j.columnType(ctx, plan.FromTable, plan.FromAnchor)
	if err != nil {
		return 0, err
	}
	toType, err := j.columnType(ctx, plan.ToTable, plan.ToAnchor)
	if err != nil {
		return 0, err
	}

	junction := postgres.QualifiedTableName(j.cfg.Schema, plan.JunctionTableName)
	fromCol := postgres.QuoteIdentifier(plan.FromColumn())
	toCol := postgres.QuoteIdentifier(plan.ToColumn())

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			%s %s NOT NULL,
			%s %s NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now(),
			UNIQUE (%s, %s)
		)`,
		junction, fromCol, fromType, toCol, toType, fromCol, toCol)

	if _, err := j.exec.ExecuteSQL(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", plan.JunctionTableName, err)
	}

	populate := fmt.Sprintf(`
		WITH inserted AS (
			INSERT INTO %[1]s (%[2]s, %[3]s)
			SELECT DISTINCT s.%[6]s, t.%[7]s
			FROM %[4]s s
			JOIN %[5]s t ON t.%[7]s::text = ANY(s.%[8]s::text[])
			WHERE s.%[6]s IS NOT NULL AND s.%[8]s IS NOT NULL
			ON CONFLICT DO NOTHING
			RETURNING 1
		)
		SELECT COUNT(*)::bigint AS inserted FROM inserted`,
		junction, fromCol, toCol,
		postgres.QualifiedTableName(j.cfg.Schema, plan.FromTable), postgres.QualifiedTableName(j.cfg.Schema, plan.ToTable),
		postgres.QuoteIdentifier(plan.FromAnchor), postgres.QuoteIdentifier(plan.ToAnchor), postgres.QuoteIdentifier(plan.FromField))

	rows, err := j.exec.ExecuteSQL(ctx, populate)
	if err != nil {
		return 0, fmt.Errorf("populate %s: %w", plan.JunctionTableName, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return datasource.Int64(rows[0], "inserted"), nil
}

// columnType returns the rendered SQL type of table.column, failing when the
// column does not exist (e.g. a source table without an anchor column).
func (j *junctionTableSynthesizer) columnType(ctx context.Context, table, column string) (string, error) {
	const query = `
		SELECT format_type(a.atttypid, a.atttypmod) AS sql_type
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2 AND a.attname = $3
		  AND a.attnum > 0 AND NOT a.attisdropped
	`

	rows, err := j.exec.ExecuteSQL(ctx, query, j.cfg.Schema, table, column)
	if err != nil {
		return "", fmt.Errorf("look up type of %s.%s: %w", table, column, err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("table %s has no column %s", table, column)
	}
	return datasource.String(rows[0], "sql_type"), nil
}
