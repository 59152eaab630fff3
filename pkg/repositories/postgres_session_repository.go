package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/tablelink/pkg/apperrors"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

const pgUniqueViolation = "23505"

type postgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository stores sessions in tablelink.analysis_sessions.
// The table is created by the embedded migrations.
func NewPostgresSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &postgresSessionRepository{pool: pool}
}

var _ SessionRepository = (*postgresSessionRepository)(nil)

func (r *postgresSessionRepository) Create(ctx context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tablelink.analysis_sessions (id, phase, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.pool.Exec(ctx, query, session.ID, string(session.Phase), data, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) Get(ctx context.Context, id string) (*models.AnalysisSession, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.ErrSessionNotFound
	}

	var data []byte
	err = r.pool.QueryRow(ctx, `SELECT payload FROM tablelink.analysis_sessions WHERE id = $1`, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(data)
}

func (r *postgresSessionRepository) Update(ctx context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE tablelink.analysis_sessions
		SET phase = $2, payload = $3, updated_at = $4
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, session.ID, string(session.Phase), data, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *postgresSessionRepository) Delete(ctx context.Context, id string) error {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return apperrors.ErrSessionNotFound
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM tablelink.analysis_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}
