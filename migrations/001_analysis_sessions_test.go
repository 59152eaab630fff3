//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/tablelink/pkg/testhelpers"
)

// Test_001_AnalysisSessions verifies migration 001 creates the session table in its own schema
func Test_001_AnalysisSessions(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	var dataType string
	err := engineDB.DB.Pool.QueryRow(ctx, `
		SELECT data_type
		FROM information_schema.columns
		WHERE table_schema = 'tablelink'
		AND table_name = 'analysis_sessions'
		AND column_name = 'payload'
	`).Scan(&dataType)
	require.NoError(t, err, "Failed to query column information")
	assert.Equal(t, "jsonb", dataType, "payload column should be JSONB type")

	var indexExists bool
	err = engineDB.DB.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'tablelink'
			AND indexname = 'idx_analysis_sessions_updated_at'
		)
	`).Scan(&indexExists)
	require.NoError(t, err, "Failed to query index information")
	assert.True(t, indexExists, "idx_analysis_sessions_updated_at index should exist")

	// The phase check constraint rejects unknown phases
	_, err = engineDB.DB.Pool.Exec(ctx, `
		INSERT INTO tablelink.analysis_sessions (id, phase, payload)
		VALUES (gen_random_uuid(), 'bogus', '{}'::jsonb)
	`)
	assert.Error(t, err, "unknown phase should violate the check constraint")
}
