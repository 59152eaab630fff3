package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/tablelink/pkg/apperrors"
	"github.com/ekaya-inc/tablelink/pkg/models"
)

const defaultSessionKeyPrefix = "tablelink:session:"

type redisSessionRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionRepository stores sessions as JSON values that expire after ttl.
// A zero ttl keeps sessions until deleted.
func NewRedisSessionRepository(client *redis.Client, keyPrefix string, ttl time.Duration) SessionRepository {
	if keyPrefix == "" {
		keyPrefix = defaultSessionKeyPrefix
	}
	return &redisSessionRepository{client: client, prefix: keyPrefix, ttl: ttl}
}

var _ SessionRepository = (*redisSessionRepository)(nil)

func (r *redisSessionRepository) key(id string) string {
	return r.prefix + id
}

func (r *redisSessionRepository) Create(ctx context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	ok, err := r.client.SetNX(ctx, r.key(session.ID.String()), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, id string) (*models.AnalysisSession, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decodeSession(data)
}

func (r *redisSessionRepository) Update(ctx context.Context, session *models.AnalysisSession) error {
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	ok, err := r.client.SetXX(ctx, r.key(session.ID.String()), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return apperrors.ErrSessionNotFound
	}
	return nil
}
