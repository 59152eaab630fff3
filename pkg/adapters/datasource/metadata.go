package datasource

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
	RowCount   int64 // planner estimate; 0 for never-analyzed tables
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string // information_schema data_type, "ARRAY" for arrays
	SQLType         string // renderable type, e.g. "text[]" or "integer"
	IsArray         bool
	IsNullable      bool
	OrdinalPosition int
}
