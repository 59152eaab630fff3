package datasource

import "context"

// SQLExecutor is the only capability the relationship engine needs from the
// target database. Rows are always returned as a plain slice; implementations
// that receive other result shapes normalize them with NormalizeRows.
type SQLExecutor interface {
	// ExecuteSQL runs a statement with positional parameters ($1, $2, ...).
	// DDL and DML without RETURNING yield an empty, non-nil slice.
	ExecuteSQL(ctx context.Context, query string, params ...any) ([]map[string]any, error)
}

// SchemaDiscoverer enumerates the tables and columns of one schema.
type SchemaDiscoverer interface {
	// DiscoverTables returns base tables of the schema ordered by name.
	DiscoverTables(ctx context.Context, schemaName string) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table in ordinal order.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)
}

// QueryResult is the wrapped result shape some executors return ({rows: [...]}).
type QueryResult struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
}
