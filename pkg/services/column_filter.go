package services

import (
	"path"
	"strings"
	"unicode"
)

// DefaultDerivedFieldPatterns name computed columns that hold identifier-shaped
// values without being relationships (lookups, rollups, formulas).
var DefaultDerivedFieldPatterns = []string{
	"lookup",
	"*_lookup",
	"lookup_*",
	"rollup",
	"formula",
	"calculated",
	"computed",
	"derived",
}

// ColumnPredicate reports whether a column name should be excluded from candidate generation.
type ColumnPredicate func(columnName string) bool

// DerivedFieldMatcher matches column names against derived-field patterns, case-insensitively.
// A bare pattern matches when it equals any word of the name ("Total (Rollup)" has the
// words "total" and "rollup"); a pattern containing '*' or '?' is a glob over the whole name.
type DerivedFieldMatcher struct {
	words map[string]bool
	globs []string
}

// NewDerivedFieldMatcher builds a matcher. An empty pattern list matches nothing.
func NewDerivedFieldMatcher(patterns []string) *DerivedFieldMatcher {
	m := &DerivedFieldMatcher{words: make(map[string]bool)}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[") {
			m.globs = append(m.globs, p)
		} else {
			m.words[p] = true
		}
	}
	return m
}

// Matches reports whether name looks like a derived field.
func (m *DerivedFieldMatcher) Matches(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range splitWords(name) {
		if m.words[w] {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, err := path.Match(g, lower); err == nil && ok {
			return true
		}
	}
	return false
}

// Predicate adapts the matcher to a ColumnPredicate.
func (m *DerivedFieldMatcher) Predicate() ColumnPredicate {
	return m.Matches
}

// splitWords lowercases name and splits it on non-alphanumerics and camelCase boundaries.
func splitWords(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// TableFilter excludes bookkeeping and synthesized tables from analysis.
type TableFilter struct {
	excluded       map[string]bool
	junctionSuffix string
}

// NewTableFilter excludes the named tables and any table ending in junctionSuffix.
func NewTableFilter(excludedTables []string, junctionSuffix string) *TableFilter {
	f := &TableFilter{excluded: make(map[string]bool), junctionSuffix: junctionSuffix}
	for _, t := range excludedTables {
		f.excluded[t] = true
	}
	return f
}

// IsExcluded reports whether table should be skipped.
func (f *TableFilter) IsExcluded(table string) bool {
	if f.excluded[table] {
		return true
	}
	return f.junctionSuffix != "" && strings.HasSuffix(table, f.junctionSuffix)
}
