//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/tablelink/pkg/apperrors"
	"github.com/ekaya-inc/tablelink/pkg/models"
	"github.com/ekaya-inc/tablelink/pkg/testhelpers"
)

func TestPostgresSessionRepository(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	exerciseSessionRepository(t, NewPostgresSessionRepository(engineDB.DB.Pool))
}

func TestPostgresSessionRepository_PhaseColumnTracksPayload(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()
	repo := NewPostgresSessionRepository(engineDB.DB.Pool)

	session := models.NewAnalysisSession()
	require.NoError(t, repo.Create(ctx, session))
	t.Cleanup(func() { _ = repo.Delete(context.Background(), session.ID.String()) })

	require.NoError(t, session.Advance(models.PhaseConfidenceAnalyzed))
	require.NoError(t, repo.Update(ctx, session))

	var phase string
	err := engineDB.DB.Pool.QueryRow(ctx,
		`SELECT phase FROM tablelink.analysis_sessions WHERE id = $1`, session.ID).Scan(&phase)
	require.NoError(t, err)
	assert.Equal(t, string(models.PhaseConfidenceAnalyzed), phase)
}

func TestPostgresSessionRepository_MalformedID(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewPostgresSessionRepository(engineDB.DB.Pool)

	_, err := repo.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}
