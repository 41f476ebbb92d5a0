package runs

import (
	"context"
	"errors"
	"time"

	"species-checker/internal/common/database"
	apperrors "species-checker/internal/common/errors"
)

const keyPrefix = "run:"

// RedisStore keeps each run as JSON under run:<id>, refreshed with ttl on every write.
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, run *Run) error {
	return s.put(ctx, run)
}

func (s *RedisStore) Update(ctx context.Context, run *Run) error {
	return s.put(ctx, run)
}

func (s *RedisStore) put(ctx context.Context, run *Run) error {
	if err := s.client.SetJSON(ctx, keyPrefix+run.ID, run, s.ttl); err != nil {
		return apperrors.NewRunStoreError(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.client.GetJSON(ctx, keyPrefix+id, &run)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NewRunNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewRunStoreError(err)
	}
	return &run, nil
}
