package repositories

import (
	"context"
	"sync"

	"github.com/ekaya-inc/tablelink/pkg/apperrors"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemorySessionRepository keeps sessions in process memory.
// Sessions are stored encoded so callers never share state with the store.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{sessions: make(map[string][]byte)}
}

var _ SessionRepository = (*memorySessionRepository)(nil)

func (r *memorySessionRepository) Create(_ context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := session.ID.String()
	if _, ok := r.sessions[id]; ok {
		return apperrors.ErrConflict
	}
	r.sessions[id] = data
	return nil
}

func (r *memorySessionRepository) Get(_ context.Context, id string) (*models.AnalysisSession, error) {
	r.mu.RLock()
	data, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return decodeSession(data)
}

func (r *memorySessionRepository) Update(_ context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := session.ID.String()
	if _, ok := r.sessions[id]; !ok {
		return apperrors.ErrSessionNotFound
	}
	r.sessions[id] = data
	return nil
}

func (r *memorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return apperrors.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}
