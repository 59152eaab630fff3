package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/tablelink/pkg/apperrors"
)

// ============================================================================
// Analysis Phases
// ============================================================================

// Phase is the state of an analysis session.
// State machine (strict order, no skipping, no going back):
//
//	pending → confidence-analyzed → junction-detected → junction-tables-created → completed
type Phase string

const (
	PhasePending               Phase = "pending"
	PhaseConfidenceAnalyzed    Phase = "confidence-analyzed"
	PhaseJunctionDetected      Phase = "junction-detected"
	PhaseJunctionTablesCreated Phase = "junction-tables-created"
	PhaseCompleted             Phase = "completed"
)

// phaseOrder lists phases in the only order a session may visit them.
var phaseOrder = []Phase{
	PhasePending,
	PhaseConfidenceAnalyzed,
	PhaseJunctionDetected,
	PhaseJunctionTablesCreated,
	PhaseCompleted,
}

// IsValidPhase checks if the given phase is valid.
func IsValidPhase(p Phase) bool {
	return p.index() >= 0
}

func (p Phase) index() int {
	for i, v := range phaseOrder {
		if v == p {
			return i
		}
	}
	return -1
}

// Previous returns the phase that must precede p, or "" for the initial phase.
func (p Phase) Previous() Phase {
	if i := p.index(); i > 0 {
		return phaseOrder[i-1]
	}
	return ""
}

// CanTransitionTo checks if a transition from the current phase to the target is allowed.
func (p Phase) CanTransitionTo(target Phase) bool {
	i := p.index()
	return i >= 0 && target.index() == i+1
}

// PhaseTransition records one step of the session's history.
type PhaseTransition struct {
	From Phase     `json:"from"`
	To   Phase     `json:"to"`
	At   time.Time `json:"at"`
}

// ============================================================================
// Session Errors
// ============================================================================

// ErrorKind classifies a per-item failure captured as data.
type ErrorKind string

const (
	ErrorKindScoring     ErrorKind = "scoring"
	ErrorKindCardinality ErrorKind = "cardinality"
	ErrorKindJunction    ErrorKind = "junction"
	ErrorKindForeignKey  ErrorKind = "foreign-key"
)

// SessionError is a local failure recorded on the session instead of aborting the phase.
type SessionError struct {
	Phase   Phase     `json:"phase"`
	Kind    ErrorKind `json:"kind"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
}

// ============================================================================
// Analysis Session
// ============================================================================

// AnalysisStatistics summarizes phase 1.
type AnalysisStatistics struct {
	TablesAnalyzed          int            `json:"tables_analyzed"`
	ColumnsAnalyzed         int            `json:"columns_analyzed"`
	PairsEvaluated          int            `json:"pairs_evaluated"`
	CandidatesRetained      int            `json:"candidates_retained"`
	ScoringFailures         int            `json:"scoring_failures"`
	CardinalityFailures     int            `json:"cardinality_failures"`
	ConfidenceDistribution  map[string]int `json:"confidence_distribution"`
	CardinalityDistribution map[string]int `json:"cardinality_distribution"`
	DurationMs              int64          `json:"duration_ms"`
}

// AnalysisSession accumulates the outputs of every phase. It is not safe for
// concurrent phase calls; callers serialize access per session.
type AnalysisSession struct {
	ID                     uuid.UUID               `json:"session_id"`
	Phase                  Phase                   `json:"phase"`
	Relationships          []RelationshipCandidate `json:"relationships"`
	JunctionTableNeeds     []JunctionTablePlan     `json:"junction_table_needs"`
	OneToManyRelationships []RelationshipCandidate `json:"one_to_many_relationships"`
	CreatedJunctionTables  []JunctionTableResult   `json:"created_junction_tables"`
	CreatedForeignKeys     []ForeignKeyResult      `json:"created_foreign_keys"`
	Errors                 []SessionError          `json:"errors"`
	Statistics             AnalysisStatistics      `json:"statistics"`
	PhaseHistory           []PhaseTransition       `json:"phase_history"`
	CreatedAt              time.Time               `json:"created_at"`
	UpdatedAt              time.Time               `json:"updated_at"`
}

// NewAnalysisSession returns a session in the pending phase.
func NewAnalysisSession() *AnalysisSession {
	now := time.Now().UTC()
	return &AnalysisSession{
		ID:        uuid.New(),
		Phase:     PhasePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RequirePhase fails with a PhaseMismatchError unless the session is in expected.
func (s *AnalysisSession) RequirePhase(expected Phase) error {
	if s.Phase != expected {
		return &apperrors.PhaseMismatchError{
			SessionID: s.ID.String(),
			Actual:    string(s.Phase),
			Expected:  string(expected),
		}
	}
	return nil
}

// Advance moves the session to the next phase and records the transition.
func (s *AnalysisSession) Advance(target Phase) error {
	if !s.Phase.CanTransitionTo(target) {
		return &apperrors.PhaseMismatchError{
			SessionID: s.ID.String(),
			Actual:    string(s.Phase),
			Expected:  string(target.Previous()),
		}
	}
	now := time.Now().UTC()
	s.PhaseHistory = append(s.PhaseHistory, PhaseTransition{From: s.Phase, To: target, At: now})
	s.Phase = target
	s.UpdatedAt = now
	return nil
}

// AddError records a per-item failure for the current operation.
func (s *AnalysisSession) AddError(phase Phase, kind ErrorKind, subject, message string) {
	s.Errors = append(s.Errors, SessionError{
		Phase:   phase,
		Kind:    kind,
		Subject: subject,
		Message: message,
	})
}

// ErrorsOfKind returns the recorded errors with the given kind, never nil.
func (s *AnalysisSession) ErrorsOfKind(kind ErrorKind) []SessionError {
	out := make([]SessionError, 0)
	for _, e := range s.Errors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
