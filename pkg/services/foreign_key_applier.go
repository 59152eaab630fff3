package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

// ForeignKeyApplier adds named foreign-key constraints one at a time.
type ForeignKeyApplier interface {
	// Apply attempts every plan independently; there is no enclosing transaction.
	// A constraint that already exists is reported as skipped.
	Apply(ctx context.Context, plans []models.ForeignKeyPlan) []models.ForeignKeyResult
}

type foreignKeyApplier struct {
	exec   datasource.SQLExecutor
	schema string
	logger *zap.Logger
}

// NewForeignKeyApplier creates a ForeignKeyApplier for tables in schema.
func NewForeignKeyApplier(exec datasource.SQLExecutor, schema string, logger *zap.Logger) ForeignKeyApplier {
	return &foreignKeyApplier{
		exec:   exec,
		schema: schema,
		logger: logger.Named("foreign-key-applier"),
	}
}

var _ ForeignKeyApplier = (*foreignKeyApplier)(nil)

// PlanForeignKeys lists direct constraints followed by both sides of every
// junction table that was created successfully.
func PlanForeignKeys(direct []models.RelationshipCandidate, junctions []models.JunctionTableResult) []models.ForeignKeyPlan {
	plans := make([]models.ForeignKeyPlan, 0, len(direct)+2*len(junctions))
	for _, c := range direct {
		plans = append(plans, models.DirectForeignKeyPlan(c))
	}
	for _, jr := range junctions {
		if jr.Outcome != models.OutcomeSucceeded {
			continue
		}
		plans = append(plans, models.JunctionForeignKeyPlans(jr.Plan)...)
	}
	return plans
}

func (f *foreignKeyApplier) Apply(ctx context.Context, plans []models.ForeignKeyPlan) []models.ForeignKeyResult {
	results := make([]models.ForeignKeyResult, 0, len(plans))
	created, skipped, failed := 0, 0, 0

	for _, plan := range plans {
		result := f.applyOne(ctx, plan)
		switch result.Outcome {
		case models.OutcomeSucceeded:
			created++
		case models.OutcomeSkipped:
			skipped++
		default:
			failed++
		}
		results = append(results, result)
	}

	f.logger.Info("Applied foreign keys",
		zap.Int("created", created),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))

	return results
}

func (f *foreignKeyApplier) applyOne(ctx context.Context, plan models.ForeignKeyPlan) models.ForeignKeyResult {
	exists, err := f.constraintExists(ctx, plan)
	if err != nil {
		return f.failed(plan, err)
	}
	if exists {
		f.logger.Debug("Constraint already exists", zap.String("constraint", plan.ConstraintName))
		return models.ForeignKeyResult{Plan: plan, Outcome: models.OutcomeSkipped}
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		postgres.QualifiedTableName(f.schema, plan.FromTable),
		postgres.QuoteIdentifier(plan.ConstraintName),
		postgres.QuoteIdentifier(plan.FromField),
		postgres.QualifiedTableName(f.schema, plan.ToTable),
		postgres.QuoteIdentifier(plan.ToField))

	if _, err := f.exec.ExecuteSQL(ctx, stmt); err != nil {
		return f.failed(plan, err)
	}

	return models.ForeignKeyResult{Plan: plan, Outcome: models.OutcomeSucceeded}
}

func (f *foreignKeyApplier) failed(plan models.ForeignKeyPlan, err error) models.ForeignKeyResult {
	f.logger.Warn("Foreign key failed",
		zap.String("constraint", plan.ConstraintName),
		zap.String("from", plan.FromTable+"."+plan.FromField),
		zap.String("to", plan.ToTable+"."+plan.ToField),
		zap.Error(err))
	return models.ForeignKeyResult{Plan: plan, Outcome: models.OutcomeFailed, Error: errorText(err)}
}

func (f *foreignKeyApplier) constraintExists(ctx context.Context, plan models.ForeignKeyPlan) (bool, error) {
	const query = `
		SELECT 1 AS found
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		WHERE con.conname = $1 AND n.nspname = $2 AND rel.relname = $3
	`
	rows, err := f.exec.ExecuteSQL(ctx, query, plan.ConstraintName, f.schema, plan.FromTable)
	if err != nil {
		return false, fmt.Errorf("check constraint %s: %w", plan.ConstraintName, err)
	}
	return len(rows) > 0, nil
}
