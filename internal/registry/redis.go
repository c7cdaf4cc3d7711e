package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chunkstream/api/internal/model"
)

const (
	jobKeyPrefix = "job:"
	jobIndexKey  = "jobs:index"
	jobRetention = 7 * 24 * time.Hour
)

// RedisStore keeps job records as JSON under job:{id} with a sorted-set
// index scored by start time, for multi-instance deployments.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, jobRetention)
	pipe.ZAdd(ctx, jobIndexKey, redis.Z{Score: float64(job.StartedAt.UnixNano()), Member: job.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+jobID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*model.Job, error) {
	ids, err := s.client.ZRevRange(ctx, jobIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if err != nil {
			if err == ErrJobNotFound {
				// Record expired under the index entry; drop it.
				s.client.ZRem(ctx, jobIndexKey, id)
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	removed, err := s.client.Del(ctx, jobKeyPrefix+jobID).Result()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	s.client.ZRem(ctx, jobIndexKey, jobID)
	if removed == 0 {
		return ErrJobNotFound
	}
	return nil
}
