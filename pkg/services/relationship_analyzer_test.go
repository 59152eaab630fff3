package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/models"
	"github.com/ekaya-inc/tablelink/pkg/workerpool"
)

func analyzerTables() []models.TableDescriptor {
	return []models.TableDescriptor{
		{Name: "customers", RowCount: 2, HasAnchor: true, AnchorType: "text"},
		{
			Name: "orders", RowCount: 150, HasAnchor: true, AnchorType: "text",
			Columns: []models.ColumnDescriptor{
				{Table: "orders", Column: "customer_ids", SQLType: "text[]", IsArray: true},
				{Table: "orders", Column: "note", SQLType: "text"},
			},
		},
		{
			Name: "notes", RowCount: 10,
			Columns: []models.ColumnDescriptor{
				{Table: "notes", Column: "order_ref", SQLType: "text"},
			},
		},
	}
}

// zeroStats answers any remaining statistics query with an empty source.
var zeroStats = []map[string]any{row("total_rows", int64(0), "non_null", int64(0), "distinct_count", int64(0), "matched", int64(0), "valid_refs", int64(0))}

func TestRelationshipAnalyzer_ScoresAndFilters(t *testing.T) {
	exec := (&scriptedExecutor{}).
		on([]map[string]any{row("total_rows", int64(150), "non_null", int64(150), "valid_refs", int64(150), "distinct_count", int64(20))},
			`"orders" s`, `"customers" t`, "valid_refs").
		on([]map[string]any{row("total_rows", int64(150), "non_null", int64(150), "distinct_count", int64(150), "matched", int64(0))},
			`"orders" s`, `"customers" t`, "matched").
		on([]map[string]any{row("total_rows", int64(10), "non_null", int64(5), "distinct_count", int64(10), "matched", int64(6))},
			`"notes" s`, `"orders" t`).
		on([]map[string]any{row("total_rows", int64(10), "non_null", int64(10), "distinct_count", int64(10), "matched", int64(0))},
			`"notes" s`, `"customers" t`)

	analyzer := NewRelationshipAnalyzer(exec, nil, AnalyzerConfig{Schema: "public", AnchorColumn: "id"}, zap.NewNop())
	out := analyzer.Analyze(context.Background(), analyzerTables())

	// orders: 2 columns x customers; notes: 1 column x (customers, orders). notes has no anchor.
	assert.Equal(t, 4, out.PairsEvaluated)
	assert.Equal(t, 3, out.ColumnsAnalyzed)
	assert.Empty(t, out.ScoringFailures)
	require.Len(t, out.Candidates, 2)

	first := out.Candidates[0]
	assert.Equal(t, "notes", first.FromTable)
	assert.Equal(t, "order_ref", first.FromField)
	assert.Equal(t, "orders", first.ToTable)
	assert.Equal(t, "id", first.ToField)
	assert.Equal(t, 0.65, first.Confidence)
	assert.Equal(t, models.RelationshipOneToOne, first.RelationshipType)
	assert.InDelta(t, 60.0, first.Statistics.ReferentialIntegrityPercent, 0.001)

	second := out.Candidates[1]
	assert.Equal(t, "orders.customer_ids->customers.id", second.Key())
	assert.Equal(t, 0.99, second.Confidence)
	assert.Equal(t, models.RelationshipManyToMany, second.RelationshipType)
	assert.Equal(t, models.FieldKindArray, second.Statistics.FieldKind)
	assert.InDelta(t, 100.0, second.Statistics.ReferentialIntegrityPercent, 0.001)
}

func TestRelationshipAnalyzer_FailuresAreData(t *testing.T) {
	exec := (&scriptedExecutor{}).
		fail(errors.New("canceling statement due to statement timeout"), `"orders" s`, "valid_refs").
		on([]map[string]any{row("total_rows", int64(10), "non_null", int64(5), "distinct_count", int64(10), "matched", int64(6))},
			`"notes" s`, `"orders" t`).
		on(zeroStats)

	analyzer := NewRelationshipAnalyzer(exec, workerpool.New(workerpool.Config{MaxConcurrent: 4}, zap.NewNop()),
		AnalyzerConfig{Schema: "public", AnchorColumn: "id"}, zap.NewNop())
	out := analyzer.Analyze(context.Background(), analyzerTables())

	require.Len(t, out.ScoringFailures, 1)
	failure := out.ScoringFailures[0]
	assert.Equal(t, models.ErrorKindScoring, failure.Kind)
	assert.Equal(t, "orders.customer_ids->customers.id", failure.Subject)
	assert.Contains(t, failure.Message, "statement timeout")

	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "notes", out.Candidates[0].FromTable)
}

func TestRelationshipAnalyzer_DiscardsAtThreshold(t *testing.T) {
	// integrity 30% with 2 matches scores exactly 0.35; raise the floor above it.
	exec := (&scriptedExecutor{}).
		on([]map[string]any{row("total_rows", int64(10), "non_null", int64(5), "distinct_count", int64(10), "matched", int64(3))},
			`"notes" s`, `"orders" t`).
		on(zeroStats)

	analyzer := NewRelationshipAnalyzer(exec, nil, AnalyzerConfig{Schema: "public", AnchorColumn: "id", MinConfidence: 0.35}, zap.NewNop())
	out := analyzer.Analyze(context.Background(), analyzerTables())

	assert.Empty(t, out.Candidates)
	assert.Empty(t, out.ScoringFailures)
}

func TestRelationshipAnalyzer_NoPairs(t *testing.T) {
	exec := &scriptedExecutor{}
	analyzer := NewRelationshipAnalyzer(exec, nil, AnalyzerConfig{Schema: "public", AnchorColumn: "id"}, zap.NewNop())

	out := analyzer.Analyze(context.Background(), []models.TableDescriptor{{Name: "solo", HasAnchor: true}})
	assert.Zero(t, out.PairsEvaluated)
	assert.Empty(t, out.Candidates)
	assert.Empty(t, exec.queries)
}
