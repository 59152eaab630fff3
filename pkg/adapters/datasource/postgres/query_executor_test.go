//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
	"github.com/ekaya-inc/tablelink/pkg/testhelpers"
)

// queryExecutorTestContext holds dependencies for query executor tests.
type queryExecutorTestContext struct {
	adapter *Adapter
	schema  string
}

// setupQueryExecutorTest creates an Adapter on the shared container with a fresh schema.
func setupQueryExecutorTest(t *testing.T, timeout time.Duration) *queryExecutorTestContext {
	t.Helper()

	testDB := testhelpers.GetTestDB(t)
	schema := testhelpers.NewTestSchema(t, testDB)

	adapter := NewAdapterFromPool(testDB.Pool, timeout, zap.NewNop())

	return &queryExecutorTestContext{adapter: adapter, schema: schema}
}

func (tc *queryExecutorTestContext) table(name string) string {
	return QualifiedTableName(tc.schema, name)
}

func TestExecuteSQL_Select(t *testing.T) {
	tc := setupQueryExecutorTest(t, 5*time.Second)

	rows, err := tc.adapter.ExecuteSQL(context.Background(), "SELECT 1::bigint AS n, 'a'::text AS s")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["n"])
	assert.Equal(t, "a", rows[0]["s"])
}

func TestExecuteSQL_DDLAndDML(t *testing.T) {
	tc := setupQueryExecutorTest(t, 5*time.Second)
	ctx := context.Background()

	rows, err := tc.adapter.ExecuteSQL(ctx, "CREATE TABLE "+tc.table("items")+" (id text PRIMARY KEY, tags text[])")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = tc.adapter.ExecuteSQL(ctx, "INSERT INTO "+tc.table("items")+" VALUES ($1, $2)", "a", []string{"x", "y"})
	require.NoError(t, err)

	rows, err = tc.adapter.ExecuteSQL(ctx, "SELECT cardinality(tags)::bigint AS n FROM "+tc.table("items")+" WHERE id = $1", "a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), datasource.Int64(rows[0], "n"))

	_, err = tc.adapter.ExecuteSQL(ctx, "INSERT INTO "+tc.table("items")+" VALUES ($1, NULL)", "a")
	require.Error(t, err)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "driver errors stay inspectable")
	assert.Equal(t, "23505", pgErr.Code)
}

func TestExecuteSQL_InvalidSQL(t *testing.T) {
	tc := setupQueryExecutorTest(t, 5*time.Second)

	_, err := tc.adapter.ExecuteSQL(context.Background(), "SELECT FROM WHERE")
	assert.Error(t, err)

	_, err = tc.adapter.ExecuteSQL(context.Background(), "SELECT * FROM "+tc.table("missing"))
	assert.Error(t, err)
}

func TestExecuteSQL_StatementTimeout(t *testing.T) {
	tc := setupQueryExecutorTest(t, 200*time.Millisecond)

	start := time.Now()
	_, err := tc.adapter.ExecuteSQL(context.Background(), "SELECT pg_sleep(5)")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)

	// The pool stays usable after a timed-out statement.
	rows, err := tc.adapter.ExecuteSQL(context.Background(), "SELECT 1 AS ok")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExecuteSQL_ContextCancellation(t *testing.T) {
	tc := setupQueryExecutorTest(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tc.adapter.ExecuteSQL(ctx, "SELECT 1")
	assert.Error(t, err)
}
