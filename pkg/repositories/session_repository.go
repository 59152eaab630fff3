package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/tablelink/pkg/models"
)

// SessionRepository persists analysis sessions between phase calls.
// Get returns apperrors.ErrSessionNotFound for unknown ids.
type SessionRepository interface {
	Create(ctx context.Context, session *models.AnalysisSession) error
	Get(ctx context.Context, id string) (*models.AnalysisSession, error)
	Update(ctx context.Context, session *models.AnalysisSession) error
	Delete(ctx context.Context, id string) error
}

func encodeSession(session *models.AnalysisSession) ([]byte, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*models.AnalysisSession, error) {
	var session models.AnalysisSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if !models.IsValidPhase(session.Phase) {
		return nil, fmt.Errorf("session %s has unknown phase %q", session.ID, session.Phase)
	}
	for _, rel := range session.Relationships {
		if !models.IsValidRelationshipType(rel.RelationshipType) {
			return nil, fmt.Errorf("session %s: relationship %s has unknown type %q", session.ID, rel.Key(), rel.RelationshipType)
		}
	}
	return &session, nil
}
