package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/logging"
)

// ExecuteSQL runs any statement and collects its rows as maps keyed by column name.
// The configured statement timeout bounds each call; a timeout surfaces as an
// ordinary error.
func (a *Adapter) ExecuteSQL(ctx context.Context, query string, params ...any) ([]map[string]any, error) {
	if a.statementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.statementTimeout)
		defer cancel()
	}

	rows, err := a.pool.Query(ctx, query, params...)
	if err != nil {
		a.logger.Debug("Statement failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		return nil, fmt.Errorf("execute statement: %w", err)
	}
	defer rows.Close()

	result := make([]map[string]any, 0)

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	// For DDL/DML without RETURNING we still iterate: pgx defers execution
	// until rows are consumed.
	for rows.Next() {
		if len(columns) == 0 {
			continue
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		result = append(result, rowMap)
	}

	if err := rows.Err(); err != nil {
		a.logger.Debug("Statement failed",
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		return nil, fmt.Errorf("execute statement: %w", err)
	}

	return result, nil
}
