package postgres

import (
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
)

// QuoteIdentifier quotes a single identifier for PostgreSQL.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// QualifiedTableName returns a properly quoted table reference.
// If schemaName is empty, returns just the quoted table name.
// Otherwise returns "schema"."table".
func QualifiedTableName(schemaName, tableName string) string {
	quotedTable := QuoteIdentifier(tableName)
	if schemaName == "" {
		return quotedTable
	}
	return QuoteIdentifier(schemaName) + "." + quotedTable
}

// Adapter executes statements against the target database. Each ExecuteSQL
// call borrows its own pool connection, so one Adapter can serve concurrent
// workers. The pool belongs to the caller.
type Adapter struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration // applied per ExecuteSQL call; 0 disables
	logger           *zap.Logger
}

// NewAdapterFromPool wraps an existing pool.
// If logger is nil, a no-op logger is used.
func NewAdapterFromPool(pool *pgxpool.Pool, statementTimeout time.Duration, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		pool:             pool,
		statementTimeout: statementTimeout,
		logger:           logger.Named("postgres"),
	}
}

var _ datasource.SQLExecutor = (*Adapter)(nil)
