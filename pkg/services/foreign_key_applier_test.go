package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

func TestPlanForeignKeys(t *testing.T) {
	direct := []models.RelationshipCandidate{
		{FromTable: "invoices", FromField: "order_id", ToTable: "orders", ToField: "id"},
	}
	okPlan := models.NewJunctionTablePlan(arrayCandidate("orders", "customer_ids", "customers", 0.99, nil), "id", "_junction")
	badPlan := models.NewJunctionTablePlan(arrayCandidate("orders", "tag_ids", "tags", 0.99, nil), "id", "_junction")

	plans := PlanForeignKeys(direct, []models.JunctionTableResult{
		{Plan: okPlan, Outcome: models.OutcomeSucceeded},
		{Plan: badPlan, Outcome: models.OutcomeFailed, Error: "boom"},
	})

	require.Len(t, plans, 3)
	assert.Equal(t, "fk_invoices_order_id_orders", plans[0].ConstraintName)
	assert.Equal(t, models.ForeignKeyKindDirect, plans[0].Kind)

	assert.Equal(t, "fk_orders_customers_junction_orders", plans[1].ConstraintName)
	assert.Equal(t, "orders_id", plans[1].FromField)
	assert.Equal(t, "orders", plans[1].ToTable)

	assert.Equal(t, "fk_orders_customers_junction_customers", plans[2].ConstraintName)
	assert.Equal(t, "customers_id", plans[2].FromField)
	assert.Equal(t, models.ForeignKeyKindJunction, plans[2].Kind)
}

func TestForeignKeyApplier_SkipsExisting(t *testing.T) {
	exec := (&scriptedExecutor{}).on([]map[string]any{row("found", int64(1))}, "pg_constraint")

	applier := NewForeignKeyApplier(exec, "public", zap.NewNop())
	results := applier.Apply(context.Background(), []models.ForeignKeyPlan{
		{ConstraintName: "fk_invoices_order_id_orders", FromTable: "invoices", FromField: "order_id", ToTable: "orders", ToField: "id"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeSkipped, results[0].Outcome)
	assert.Zero(t, exec.count("ALTER TABLE"))
}

func TestForeignKeyApplier_CreatesAndRecordsFailures(t *testing.T) {
	exec := (&scriptedExecutor{}).
		fail(errors.New(`insert or update on table "notes" violates foreign key constraint`), "ALTER TABLE", `"fk_notes_order_ref_orders"`)

	applier := NewForeignKeyApplier(exec, "public", zap.NewNop())
	results := applier.Apply(context.Background(), []models.ForeignKeyPlan{
		{ConstraintName: "fk_notes_order_ref_orders", FromTable: "notes", FromField: "order_ref", ToTable: "orders", ToField: "id"},
		{ConstraintName: "fk_invoices_order_id_orders", FromTable: "invoices", FromField: "order_id", ToTable: "orders", ToField: "id"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Error, "violates foreign key constraint")
	assert.Equal(t, models.OutcomeSucceeded, results[1].Outcome, "one failure does not stop the rest")

	assert.Equal(t, 1, exec.count(
		`ALTER TABLE "public"."invoices" ADD CONSTRAINT "fk_invoices_order_id_orders" FOREIGN KEY ("order_id") REFERENCES "public"."orders" ("id")`))
}

func TestForeignKeyApplier_ExistenceCheckFailure(t *testing.T) {
	exec := (&scriptedExecutor{}).fail(errors.New("connection reset"), "pg_constraint")

	applier := NewForeignKeyApplier(exec, "public", zap.NewNop())
	results := applier.Apply(context.Background(), []models.ForeignKeyPlan{
		{ConstraintName: "fk_a_b_c", FromTable: "a", FromField: "b", ToTable: "c", ToField: "id"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeFailed, results[0].Outcome)
	assert.Contains(t, results[0].Error, "connection reset")
}
