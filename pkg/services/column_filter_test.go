package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivedFieldMatcher_DefaultPatterns(t *testing.T) {
	m := NewDerivedFieldMatcher(DefaultDerivedFieldPatterns)

	tests := []struct {
		name    string
		derived bool
	}{
		{"Total (Rollup)", true},
		{"calculated_total", true},
		{"customer_lookup", true},
		{"lookup_customer", true},
		{"Lookup", true},
		{"orderFormula", true},
		{"COMPUTED_SCORE", true},
		{"derived", true},
		{"customer_ids", false},
		{"customer_id", false},
		{"rollups_enabled", false},
		{"lookups", false},
		{"notes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.derived, m.Matches(tt.name))
		})
	}
}

func TestDerivedFieldMatcher_CustomPatterns(t *testing.T) {
	m := NewDerivedFieldMatcher([]string{" Cache ", "tmp_*", ""})

	assert.True(t, m.Matches("user_cache"))
	assert.True(t, m.Matches("TMP_ids"))
	assert.False(t, m.Matches("calculated_total"), "defaults are not implied")
	assert.False(t, m.Matches("temp_ids"))
}

func TestDerivedFieldMatcher_EmptyMatchesNothing(t *testing.T) {
	m := NewDerivedFieldMatcher(nil)
	assert.False(t, m.Predicate()("Total (Rollup)"))
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"total", "rollup"}, splitWords("Total (Rollup)"))
	assert.Equal(t, []string{"order", "formula", "v2"}, splitWords("orderFormula_v2"))
	assert.Empty(t, splitWords("  __ "))
}

func TestTableFilter(t *testing.T) {
	f := NewTableFilter([]string{"schema_migrations"}, "_junction")

	assert.True(t, f.IsExcluded("schema_migrations"))
	assert.True(t, f.IsExcluded("orders_customers_junction"))
	assert.False(t, f.IsExcluded("orders"))

	noSuffix := NewTableFilter(nil, "")
	assert.False(t, noSuffix.IsExcluded("orders_customers_junction"))
}
