package services

import (
	"context"
	"strings"
	"sync"
)

// scriptedRule answers queries that contain every fragment in match.
type scriptedRule struct {
	match []string
	rows  []map[string]any
	err   error
}

// scriptedExecutor is a fake SQLExecutor. The first matching rule wins;
// unmatched queries return no rows.
type scriptedExecutor struct {
	mu      sync.Mutex
	rules   []scriptedRule
	queries []string
	params  [][]any
}

func (e *scriptedExecutor) on(rows []map[string]any, fragments ...string) *scriptedExecutor {
	e.rules = append(e.rules, scriptedRule{match: fragments, rows: rows})
	return e
}

func (e *scriptedExecutor) fail(err error, fragments ...string) *scriptedExecutor {
	e.rules = append(e.rules, scriptedRule{match: fragments, err: err})
	return e
}

func (e *scriptedExecutor) ExecuteSQL(_ context.Context, query string, params ...any) ([]map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queries = append(e.queries, query)
	e.params = append(e.params, params)

	for _, r := range e.rules {
		if containsAll(query, r.match) {
			if r.err != nil {
				return nil, r.err
			}
			return r.rows, nil
		}
	}
	return []map[string]any{}, nil
}

// count returns how many executed queries contain every fragment.
func (e *scriptedExecutor) count(fragments ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, q := range e.queries {
		if containsAll(q, fragments) {
			n++
		}
	}
	return n
}

func containsAll(s string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}

func row(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}
