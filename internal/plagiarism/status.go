package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hook-system/hook/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const statusKeyPrefix = "hook_job_status:"

var validSteps = map[models.Step]bool{
	models.StepQueued:         true,
	models.StepExtracting:     true,
	models.StepStandardizing:  true,
	models.StepFingerprinting: true,
	models.StepMatching:       true,
	models.StepCompleted:      true,
	models.StepFailed:         true,
}

// StatusStore keeps the current step of each job in Redis with a TTL
type StatusStore struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewStatusStore(rdb goredis.Cmdable, ttl time.Duration) *StatusStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &StatusStore{rdb: rdb, ttl: ttl}
}

func (s *StatusStore) Set(ctx context.Context, jobID string, step models.Step) error {
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKeyPrefix + jobID
	if err := s.rdb.Set(ctx, rkey, string(step), s.ttl).Err(); err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("jobId", jobID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("jobId", jobID).
		Str("step", string(step)).
		Msg("Status updated in Redis")

	return nil
}

// Get returns the job's step; found is false for unknown or expired jobs.
func (s *StatusStore) Get(ctx context.Context, jobID string) (step models.Step, found bool, err error) {
	val, err := s.rdb.Get(ctx, statusKeyPrefix+jobID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(val), true, nil
}
