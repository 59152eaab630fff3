package models

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// ============================================================================
// Field Kinds
// ============================================================================

// FieldKind describes how a source column encodes its references.
type FieldKind string

const (
	FieldKindArray  FieldKind = "array"
	FieldKindScalar FieldKind = "scalar"
)

// ============================================================================
// Relationship Types
// ============================================================================

// RelationshipType is the coarse or exact cardinality label of a candidate.
type RelationshipType string

const (
	RelationshipOneToOne   RelationshipType = "one-to-one"
	RelationshipOneToMany  RelationshipType = "one-to-many"
	RelationshipManyToOne  RelationshipType = "many-to-one"
	RelationshipManyToMany RelationshipType = "many-to-many"
	RelationshipUnknown    RelationshipType = "unknown"
	RelationshipError      RelationshipType = "error"
)

// ValidRelationshipTypes contains all valid relationship type values.
var ValidRelationshipTypes = []RelationshipType{
	RelationshipOneToOne,
	RelationshipOneToMany,
	RelationshipManyToOne,
	RelationshipManyToMany,
	RelationshipUnknown,
	RelationshipError,
}

// IsValidRelationshipType checks if the given type is valid.
func IsValidRelationshipType(t RelationshipType) bool {
	for _, v := range ValidRelationshipTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Cardinality is one side of a relationship: "one" or "many".
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

func cardinalityOf(maxLinks int64) Cardinality {
	if maxLinks > 1 {
		return CardinalityMany
	}
	return CardinalityOne
}

// ClassifyCardinality maps exact linkage counts to a relationship type.
// It depends only on its arguments.
func ClassifyCardinality(maxLinksFrom, maxLinksTo int64) RelationshipType {
	return RelationshipType(string(cardinalityOf(maxLinksFrom)) + "-to-" + string(cardinalityOf(maxLinksTo)))
}

// ============================================================================
// Schema Descriptors
// ============================================================================

// ColumnDescriptor is a candidate source column produced by schema introspection.
type ColumnDescriptor struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	SQLType string `json:"sql_type"`
	IsArray bool   `json:"is_array"`
}

// Kind returns the field kind implied by IsArray.
func (c ColumnDescriptor) Kind() FieldKind {
	if c.IsArray {
		return FieldKindArray
	}
	return FieldKindScalar
}

// TableDescriptor is an introspected table with its candidate columns.
type TableDescriptor struct {
	Name       string             `json:"name"`
	RowCount   int64              `json:"row_count"`
	HasAnchor  bool               `json:"has_anchor"`
	AnchorType string             `json:"anchor_type,omitempty"`
	Columns    []ColumnDescriptor `json:"columns"`
}

// ============================================================================
// Relationship Candidates
// ============================================================================

// Statistics are the referential-integrity measurements behind a confidence score.
type Statistics struct {
	ReferentialIntegrityPercent float64   `json:"referential_integrity_percent"`
	TotalRows                   int64     `json:"total_rows"`
	NonNullCount                int64     `json:"non_null_count"`
	MatchedOrValidCount         int64     `json:"matched_or_valid_count"`
	DistinctCount               int64     `json:"distinct_count"`
	DistinctnessPercent         float64   `json:"distinctness_percent"`
	FieldKind                   FieldKind `json:"field_kind"`
}

// CardinalityResult holds exact linkage counts for a candidate.
type CardinalityResult struct {
	MaxLinksFrom    int64       `json:"max_links_from"`
	MaxLinksTo      int64       `json:"max_links_to"`
	FromCardinality Cardinality `json:"from_cardinality"`
	ToCardinality   Cardinality `json:"to_cardinality"`
}

// NewCardinalityResult derives both cardinality sides from the raw counts.
func NewCardinalityResult(maxLinksFrom, maxLinksTo int64) CardinalityResult {
	return CardinalityResult{
		MaxLinksFrom:    maxLinksFrom,
		MaxLinksTo:      maxLinksTo,
		FromCardinality: cardinalityOf(maxLinksFrom),
		ToCardinality:   cardinalityOf(maxLinksTo),
	}
}

// RelationshipType returns the label implied by the counts.
func (c CardinalityResult) RelationshipType() RelationshipType {
	return ClassifyCardinality(c.MaxLinksFrom, c.MaxLinksTo)
}

// RelationshipCandidate is a scored (source column, target table) pair.
type RelationshipCandidate struct {
	FromTable        string             `json:"from_table"`
	FromField        string             `json:"from_field"`
	ToTable          string             `json:"to_table"`
	ToField          string             `json:"to_field"`
	Confidence       float64            `json:"confidence"`
	RelationshipType RelationshipType   `json:"relationship_type"`
	Statistics       Statistics         `json:"statistics"`
	Cardinality      *CardinalityResult `json:"cardinality,omitempty"`
	Error            string             `json:"error,omitempty"`
}

// Key identifies the candidate within a session.
func (c RelationshipCandidate) Key() string {
	return fmt.Sprintf("%s.%s->%s.%s", c.FromTable, c.FromField, c.ToTable, c.ToField)
}

// IsArray reports whether the source column holds identifier arrays.
func (c RelationshipCandidate) IsArray() bool {
	return c.Statistics.FieldKind == FieldKindArray
}

// Describe renders the candidate as a short sentence for reports,
// e.g. "each order links to many customers via customer_ids; each customer is referenced by many orders".
func (c RelationshipCandidate) Describe() string {
	from := nounFor(c.FromTable)
	to := nounFor(c.ToTable)

	if c.Cardinality == nil {
		return fmt.Sprintf("%s reference %s via %s (%s, confidence %.2f)",
			inflection.Plural(from), inflection.Plural(to), c.FromField, c.RelationshipType, c.Confidence)
	}

	return fmt.Sprintf("each %s links to %s via %s; each %s is referenced by %s",
		from, quantified(c.Cardinality.FromCardinality, to), c.FromField,
		to, quantified(c.Cardinality.ToCardinality, from))
}

func quantified(card Cardinality, noun string) string {
	if card == CardinalityMany {
		return "many " + inflection.Plural(noun)
	}
	return "one " + noun
}

// nounFor turns a table name such as "order_items" into a singular noun phrase ("order item").
func nounFor(table string) string {
	words := strings.FieldsFunc(strings.ToLower(table), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	if len(words) == 0 {
		return table
	}
	words[len(words)-1] = inflection.Singular(words[len(words)-1])
	return strings.Join(words, " ")
}

// ============================================================================
// Plans and Item Results
// ============================================================================

// JunctionTablePlan describes an association table for a many-to-many candidate.
type JunctionTablePlan struct {
	FromTable         string `json:"from_table"`
	ToTable           string `json:"to_table"`
	FromField         string `json:"from_field"`
	JunctionTableName string `json:"junction_table_name"`
	FromAnchor        string `json:"from_anchor"`
	ToAnchor          string `json:"to_anchor"`
}

// NewJunctionTablePlan builds the plan for a candidate. The table is named
// {fromTable}_{toTable}{suffix}.
func NewJunctionTablePlan(c RelationshipCandidate, anchorColumn, suffix string) JunctionTablePlan {
	return JunctionTablePlan{
		FromTable:         c.FromTable,
		ToTable:           c.ToTable,
		FromField:         c.FromField,
		JunctionTableName: c.FromTable + "_" + c.ToTable + suffix,
		FromAnchor:        anchorColumn,
		ToAnchor:          c.ToField,
	}
}

// FromColumn is the junction column referencing the source table.
func (p JunctionTablePlan) FromColumn() string { return p.FromTable + "_id" }

// ToColumn is the junction column referencing the target table.
func (p JunctionTablePlan) ToColumn() string { return p.ToTable + "_id" }

// ForeignKeyKind distinguishes direct constraints from junction-side ones.
type ForeignKeyKind string

const (
	ForeignKeyKindDirect   ForeignKeyKind = "direct"
	ForeignKeyKindJunction ForeignKeyKind = "junction"
)

// ForeignKeyPlan is a single named constraint to add.
type ForeignKeyPlan struct {
	ConstraintName string         `json:"constraint_name"`
	FromTable      string         `json:"from_table"`
	FromField      string         `json:"from_field"`
	ToTable        string         `json:"to_table"`
	ToField        string         `json:"to_field"`
	Kind           ForeignKeyKind `json:"kind"`
}

// DirectForeignKeyPlan names the constraint fk_{fromTable}_{fromField}_{toTable}.
func DirectForeignKeyPlan(c RelationshipCandidate) ForeignKeyPlan {
	return ForeignKeyPlan{
		ConstraintName: fmt.Sprintf("fk_%s_%s_%s", c.FromTable, c.FromField, c.ToTable),
		FromTable:      c.FromTable,
		FromField:      c.FromField,
		ToTable:        c.ToTable,
		ToField:        c.ToField,
		Kind:           ForeignKeyKindDirect,
	}
}

// JunctionForeignKeyPlans returns the two side constraints fk_{junctionTable}_{sideTable}.
func JunctionForeignKeyPlans(p JunctionTablePlan) []ForeignKeyPlan {
	return []ForeignKeyPlan{
		{
			ConstraintName: fmt.Sprintf("fk_%s_%s", p.JunctionTableName, p.FromTable),
			FromTable:      p.JunctionTableName,
			FromField:      p.FromColumn(),
			ToTable:        p.FromTable,
			ToField:        p.FromAnchor,
			Kind:           ForeignKeyKindJunction,
		},
		{
			ConstraintName: fmt.Sprintf("fk_%s_%s", p.JunctionTableName, p.ToTable),
			FromTable:      p.JunctionTableName,
			FromField:      p.ToColumn(),
			ToTable:        p.ToTable,
			ToField:        p.ToAnchor,
			Kind:           ForeignKeyKindJunction,
		},
	}
}

// Outcome tags the result of a single DDL item.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// JunctionTableResult records what happened to one junction plan.
type JunctionTableResult struct {
	Plan         JunctionTablePlan `json:"plan"`
	Outcome      Outcome           `json:"outcome"`
	RowsInserted int64             `json:"rows_inserted"`
	Error        string            `json:"error,omitempty"`
}

// ForeignKeyResult records what happened to one constraint plan.
type ForeignKeyResult struct {
	Plan    ForeignKeyPlan `json:"plan"`
	Outcome Outcome        `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}
