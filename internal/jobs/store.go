// Package jobs persists bulk edit job records and the progress metadata that
// polling clients read.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duedatechanger/api/internal/model"
)

var ErrNotFound = errors.New("job not found")

// Store saves and loads whole job records. Writes always replace the full
// record so a concurrent reader never observes a half-applied update.
type Store interface {
	Save(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
}

// RedisStore keeps one JSON document per job under "job:<id>" with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "job:",
		ttl:    ttl,
	}
}

func (s *RedisStore) Save(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		return errors.New("job ID cannot be empty")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+job.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}

	return &job, nil
}
