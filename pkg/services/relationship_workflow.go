package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tablelink/pkg/models"
	"github.com/ekaya-inc/tablelink/pkg/repositories"
)

// RelationshipWorkflowService drives an AnalysisSession through its phases.
// Each phase call asserts the immediately preceding phase before touching the session.
type RelationshipWorkflowService interface {
	// RunConfidenceAnalysis introspects the schema, scores every column pair,
	// classifies cardinality and stores a new session in confidence-analyzed.
	RunConfidenceAnalysis(ctx context.Context) (*ConfidenceAnalysisResult, error)

	// DetectJunctionNeeds partitions the session's candidates into junction
	// plans and direct relationships.
	DetectJunctionNeeds(ctx context.Context, sessionID string) (*JunctionNeedsResult, error)

	// CreateJunctionTables builds every planned junction table.
	CreateJunctionTables(ctx context.Context, sessionID string) (*JunctionTablesResult, error)

	// CreateForeignKeys adds direct and junction constraints and completes the session.
	CreateForeignKeys(ctx context.Context, sessionID string) (*ForeignKeysResult, error)

	// GetSession returns the stored session.
	GetSession(ctx context.Context, sessionID string) (*models.AnalysisSession, error)
}

// ConfidenceAnalysisResult is returned by RunConfidenceAnalysis.
type ConfidenceAnalysisResult struct {
	SessionID               string                         `json:"session_id"`
	Relationships           []models.RelationshipCandidate `json:"relationships"`
	Statistics              models.AnalysisStatistics      `json:"statistics"`
	ConfidenceDistribution  map[string]int                 `json:"confidence_distribution"`
	CardinalityDistribution map[string]int                 `json:"cardinality_distribution"`
}

// JunctionNeedsResult is returned by DetectJunctionNeeds.
type JunctionNeedsResult struct {
	JunctionTableNeeds     []models.JunctionTablePlan     `json:"junction_table_needs"`
	OneToManyRelationships []models.RelationshipCandidate `json:"one_to_many_relationships"`
}

// JunctionTablesResult is returned by CreateJunctionTables.
type JunctionTablesResult struct {
	CreatedJunctionTables []models.JunctionTableResult `json:"created_junction_tables"`
	Errors                []models.SessionError        `json:"errors"`
}

// ForeignKeysResult is returned by CreateForeignKeys.
type ForeignKeysResult struct {
	CreatedForeignKeys []models.ForeignKeyResult `json:"created_foreign_keys"`
	Errors             []models.SessionError     `json:"errors"`
}

type relationshipWorkflowService struct {
	sessions     repositories.SessionRepository
	introspector SchemaIntrospector
	analyzer     RelationshipAnalyzer
	classifier   CardinalityClassifier
	junctions    JunctionTableSynthesizer
	foreignKeys  ForeignKeyApplier
	logger       *zap.Logger
}

// NewRelationshipWorkflowService wires the phase components around a session store.
func NewRelationshipWorkflowService(
	sessions repositories.SessionRepository,
	introspector SchemaIntrospector,
	analyzer RelationshipAnalyzer,
	classifier CardinalityClassifier,
	junctions JunctionTableSynthesizer,
	foreignKeys ForeignKeyApplier,
	logger *zap.Logger,
) RelationshipWorkflowService {
	return &relationshipWorkflowService{
		sessions:     sessions,
		introspector: introspector,
		analyzer:     analyzer,
		classifier:   classifier,
		junctions:    junctions,
		foreignKeys:  foreignKeys,
		logger:       logger.Named("relationship-workflow"),
	}
}

var _ RelationshipWorkflowService = (*relationshipWorkflowService)(nil)

func (s *relationshipWorkflowService) RunConfidenceAnalysis(ctx context.Context) (*ConfidenceAnalysisResult, error) {
	start := time.Now()
	session := models.NewAnalysisSession()
	logger := s.logger.With(zap.String("session_id", session.ID.String()))
	logger.Info("Starting confidence analysis")

	tables, err := s.introspector.Introspect(ctx)
	if err != nil {
		logger.Error("Schema introspection failed", zap.Error(err))
		return nil, err
	}

	out := s.analyzer.Analyze(ctx, tables)
	session.Errors = append(session.Errors, out.ScoringFailures...)

	classified, cardErrs := s.classifier.Classify(ctx, out.Candidates)
	session.Errors = append(session.Errors, cardErrs...)
	session.Relationships = classified

	session.Statistics = models.AnalysisStatistics{
		TablesAnalyzed:          len(tables),
		ColumnsAnalyzed:         out.ColumnsAnalyzed,
		PairsEvaluated:          out.PairsEvaluated,
		CandidatesRetained:      len(classified),
		ScoringFailures:         len(out.ScoringFailures),
		CardinalityFailures:     len(cardErrs),
		ConfidenceDistribution:  confidenceDistribution(classified),
		CardinalityDistribution: cardinalityDistribution(classified),
		DurationMs:              time.Since(start).Milliseconds(),
	}

	if err := session.Advance(models.PhaseConfidenceAnalyzed); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	logger.Info("Confidence analysis complete",
		zap.Int("tables", len(tables)),
		zap.Int("pairs", out.PairsEvaluated),
		zap.Int("candidates", len(classified)),
		zap.Int("errors", len(session.Errors)),
		zap.Duration("elapsed", time.Since(start)))

	return &ConfidenceAnalysisResult{
		SessionID:               session.ID.String(),
		Relationships:           session.Relationships,
		Statistics:              session.Statistics,
		ConfidenceDistribution:  session.Statistics.ConfidenceDistribution,
		CardinalityDistribution: session.Statistics.CardinalityDistribution,
	}, nil
}

func (s *relationshipWorkflowService) DetectJunctionNeeds(ctx context.Context, sessionID string) (*JunctionNeedsResult, error) {
	session, err := s.load(ctx, sessionID, models.PhaseConfidenceAnalyzed)
	if err != nil {
		return nil, err
	}

	plans, direct := s.junctions.DetectJunctionNeeds(session.Relationships)
	session.JunctionTableNeeds = plans
	session.OneToManyRelationships = direct

	if err := s.save(ctx, session, models.PhaseJunctionDetected); err != nil {
		return nil, err
	}

	return &JunctionNeedsResult{
		JunctionTableNeeds:     plans,
		OneToManyRelationships: direct,
	}, nil
}

func (s *relationshipWorkflowService) CreateJunctionTables(ctx context.Context, sessionID string) (*JunctionTablesResult, error) {
	session, err := s.load(ctx, sessionID, models.PhaseJunctionDetected)
	if err != nil {
		return nil, err
	}

	results := s.junctions.CreateJunctionTables(ctx, session.JunctionTableNeeds)
	for _, r := range results {
		if r.Outcome == models.OutcomeFailed {
			session.AddError(models.PhaseJunctionTablesCreated, models.ErrorKindJunction, r.Plan.JunctionTableName, r.Error)
		}
	}
	session.CreatedJunctionTables = results

	if err := s.save(ctx, session, models.PhaseJunctionTablesCreated); err != nil {
		return nil, err
	}

	return &JunctionTablesResult{
		CreatedJunctionTables: results,
		Errors:                session.ErrorsOfKind(models.ErrorKindJunction),
	}, nil
}

func (s *relationshipWorkflowService) CreateForeignKeys(ctx context.Context, sessionID string) (*ForeignKeysResult, error) {
	session, err := s.load(ctx, sessionID, models.PhaseJunctionTablesCreated)
	if err != nil {
		return nil, err
	}

	plans := PlanForeignKeys(session.OneToManyRelationships, session.CreatedJunctionTables)
	results := s.foreignKeys.Apply(ctx, plans)

	for _, r := range results {
		if r.Outcome == models.OutcomeFailed {
			subject := fmt.Sprintf("%s (%s.%s -> %s.%s)", r.Plan.ConstraintName, r.Plan.FromTable, r.Plan.FromField, r.Plan.ToTable, r.Plan.ToField)
			session.AddError(models.PhaseCompleted, models.ErrorKindForeignKey, subject, r.Error)
		}
	}
	session.CreatedForeignKeys = results

	if err := s.save(ctx, session, models.PhaseCompleted); err != nil {
		return nil, err
	}

	return &ForeignKeysResult{
		CreatedForeignKeys: results,
		Errors:             session.ErrorsOfKind(models.ErrorKindForeignKey),
	}, nil
}

func (s *relationshipWorkflowService) GetSession(ctx context.Context, sessionID string) (*models.AnalysisSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// load fetches a session and checks its phase before any mutation.
func (s *relationshipWorkflowService) load(ctx context.Context, sessionID string, expected models.Phase) (*models.AnalysisSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.RequirePhase(expected); err != nil {
		s.logger.Warn("Phase sequence violation",
			zap.String("session_id", sessionID),
			zap.String("phase", string(session.Phase)),
			zap.String("expected", string(expected)))
		return nil, err
	}
	return session, nil
}

func (s *relationshipWorkflowService) save(ctx context.Context, session *models.AnalysisSession, next models.Phase) error {
	if err := session.Advance(next); err != nil {
		return err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	s.logger.Info("Session advanced",
		zap.String("session_id", session.ID.String()),
		zap.String("phase", string(next)),
		zap.Int("errors", len(session.Errors)))
	return nil
}

func confidenceDistribution(candidates []models.RelationshipCandidate) map[string]int {
	dist := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, c := range candidates {
		dist[ConfidenceBucket(c.Confidence)]++
	}
	return dist
}

func cardinalityDistribution(candidates []models.RelationshipCandidate) map[string]int {
	dist := make(map[string]int)
	for _, c := range candidates {
		dist[string(c.RelationshipType)]++
	}
	return dist
}
