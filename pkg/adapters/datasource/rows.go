package datasource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// FuncExecutor adapts a callback that may return rows in any supported shape
// into an SQLExecutor. Useful for wrapping collaborators that return either a
// bare row slice or a {rows: [...]} envelope.
type FuncExecutor func(ctx context.Context, query string, params ...any) (any, error)

// ExecuteSQL calls the callback and normalizes its result.
func (f FuncExecutor) ExecuteSQL(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	raw, err := f(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return NormalizeRows(raw)
}

var _ SQLExecutor = FuncExecutor(nil)

// NormalizeRows converts every supported result shape into a plain row slice.
// Supported: nil, []map[string]any, []any of maps, *QueryResult, QueryResult,
// and map envelopes carrying a "rows" key.
func NormalizeRows(raw any) ([]map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return []map[string]any{}, nil
	case []map[string]any:
		if v == nil {
			return []map[string]any{}, nil
		}
		return v, nil
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for i, item := range v {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("row %d has unsupported type %T", i, item)
			}
			rows = append(rows, row)
		}
		return rows, nil
	case *QueryResult:
		if v == nil {
			return []map[string]any{}, nil
		}
		return NormalizeRows(v.Rows)
	case QueryResult:
		return NormalizeRows(v.Rows)
	case map[string]any:
		inner, ok := v["rows"]
		if !ok {
			return nil, fmt.Errorf("result envelope has no rows key")
		}
		return NormalizeRows(inner)
	default:
		return nil, fmt.Errorf("unsupported result shape %T", raw)
	}
}

// Int64 reads a numeric column from a row. Missing and NULL values yield 0.
func Int64(row map[string]any, key string) int64 {
	n, _ := toInt64(row[key])
	return n
}

// String reads a column as text. Missing and NULL values yield "".
func String(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// toInt64 coerces driver values (int widths, floats, numeric, text) to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case pgtype.Numeric:
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return int64(f.Float64), true
	default:
		return 0, false
	}
}
