package postgres

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/adapters/datasource"
)

// SchemaDiscoverer reads information_schema through an SQLExecutor.
type SchemaDiscoverer struct {
	exec   datasource.SQLExecutor
	logger *zap.Logger
}

// NewSchemaDiscoverer creates a discoverer on top of exec.
// If logger is nil, a no-op logger is used.
func NewSchemaDiscoverer(exec datasource.SQLExecutor, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{
		exec:   exec,
		logger: logger.Named("schema-discoverer"),
	}
}

// DiscoverTables returns all base tables of the schema (system schemas are never returned).
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context, schemaName string) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT
			t.table_schema,
			t.table_name,
			GREATEST(COALESCE(c.reltuples, 0), 0)::bigint AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema = $1
		  AND t.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY t.table_name
	`

	rows, err := d.exec.ExecuteSQL(ctx, query, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}

	tables := make([]datasource.TableMetadata, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, datasource.TableMetadata{
			SchemaName: datasource.String(row, "table_schema"),
			TableName:  datasource.String(row, "table_name"),
			RowCount:   datasource.Int64(row, "row_count"),
		})
	}

	d.logger.Debug("Discovered tables",
		zap.String("schema", schemaName),
		zap.Int("count", len(tables)))

	return tables, nil
}

// DiscoverColumns returns columns for a specific table. Array columns are
// reported with IsArray set and an element-typed SQLType such as "text[]".
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable = 'YES' AS is_nullable,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := d.exec.ExecuteSQL(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	columns := make([]datasource.ColumnMetadata, 0, len(rows))
	for _, row := range rows {
		dataType := datasource.String(row, "data_type")
		nullable, _ := row["is_nullable"].(bool)
		columns = append(columns, datasource.ColumnMetadata{
			ColumnName:      datasource.String(row, "column_name"),
			DataType:        dataType,
			SQLType:         sqlTypeFor(dataType, datasource.String(row, "udt_name")),
			IsArray:         dataType == "ARRAY",
			IsNullable:      nullable,
			OrdinalPosition: int(datasource.Int64(row, "ordinal_position")),
		})
	}

	return columns, nil
}

// sqlTypeFor renders a usable type name from information_schema columns.
// Arrays report udt_name with a leading underscore ("_text" → "text[]").
func sqlTypeFor(dataType, udtName string) string {
	switch dataType {
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
