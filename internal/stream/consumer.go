package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hook-system/hook/internal/models"
	"github.com/hook-system/hook/internal/plagiarism"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	readBatch      = 10
	readBlock      = time.Second
	claimMinIdle   = time.Minute
	claimBatch     = 100
	reclaimEvery   = 30 * time.Second
	trimEvery      = time.Hour
	consumeBackoff = time.Second
)

// Enqueuer accepts jobs; implemented by the scheduler
type Enqueuer interface {
	Enqueue(archivePath string, fileCount int, notifyAddress string) (bool, time.Time)
}

// StatusSetter records the queued step of new jobs
type StatusSetter interface {
	Set(ctx context.Context, jobID string, step models.Step) error
}

// Consumer turns entries of a Redis stream into scheduler jobs. Entries left
// pending by a crashed consumer are reclaimed once they have been idle for a
// minute, and entries older than the retention window are trimmed.
type Consumer struct {
	rdb       redis.Cmdable
	stream    string
	group     string
	name      string
	queue     Enqueuer
	status    StatusSetter
	retention time.Duration
}

func NewConsumer(
	rdb redis.Cmdable,
	stream string,
	group string,
	name string,
	queue Enqueuer,
	status StatusSetter,
	retention time.Duration,
) *Consumer {
	return &Consumer{
		rdb:       rdb,
		stream:    stream,
		group:     group,
		name:      name,
		queue:     queue,
		status:    status,
		retention: retention,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	c.reclaim(ctx)
	go c.trimLoop(ctx)

	log.Info().
		Str("stream", c.stream).
		Str("group", c.group).
		Str("consumer", c.name).
		Dur("retention", c.retention).
		Msg("Stream consumer running")

	lastReclaim := time.Now()
	for ctx.Err() == nil {
		if time.Since(lastReclaim) >= reclaimEvery {
			c.reclaim(ctx)
			lastReclaim = time.Now()
		}

		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Str("stream", c.stream).Msg("Failed to read job requests")
			select {
			case <-ctx.Done():
			case <-time.After(consumeBackoff):
			}
		}
	}
	return ctx.Err()
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	// "0" so requests published before the group existed are still read
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	switch {
	case err == nil:
		log.Info().Str("stream", c.stream).Str("group", c.group).Msg("Created consumer group")
		return nil
	case strings.Contains(err.Error(), "BUSYGROUP"):
		return nil
	default:
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    readBatch,
		Block:    readBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, s := range streams {
		c.handleAll(ctx, s.Messages)
	}
	return nil
}

// reclaim takes over entries another consumer read but never acknowledged.
func (c *Consumer) reclaim(ctx context.Context) {
	start := "0-0"
	for {
		msgs, next, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.name,
			MinIdle:  claimMinIdle,
			Start:    start,
			Count:    claimBatch,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn().Err(err).Str("stream", c.stream).Msg("Failed to reclaim pending job requests")
			}
			return
		}

		if len(msgs) > 0 {
			log.Info().Int("claimed", len(msgs)).Msg("Reclaimed pending job requests")
			c.handleAll(ctx, msgs)
		}
		if next == "0-0" || next == "" || len(msgs) == 0 {
			return
		}
		start = next
	}
}

func (c *Consumer) handleAll(ctx context.Context, msgs []redis.XMessage) {
	for i := range msgs {
		if err := c.handle(ctx, &msgs[i]); err != nil {
			log.Error().Err(err).Str("message_id", msgs[i].ID).Msg("Failed to handle job request")
		}
	}
}

// handle enqueues one job request. Malformed entries are acknowledged and
// dropped so they are never redelivered.
func (c *Consumer) handle(ctx context.Context, msg *redis.XMessage) error {
	req, err := ParseJobRequest(&StreamMessage{ID: msg.ID, Fields: decodeFields(msg.Values)})
	if err != nil {
		if ackErr := c.ack(ctx, msg.ID); ackErr != nil {
			return errors.Join(err, ackErr)
		}
		return err
	}

	jobID := plagiarism.JobID(req.ArchivePath)
	// queued goes in first so it can never overwrite a later step
	if c.status != nil {
		if err := c.status.Set(ctx, jobID, models.StepQueued); err != nil {
			log.Warn().Err(err).Str("jobId", jobID).Msg("Failed to update queued status")
		}
	}
	accepted, eta := c.queue.Enqueue(req.ArchivePath, req.FileCount, req.NotifyAddress)

	log.Info().
		Str("message_id", msg.ID).
		Str("jobId", jobID).
		Bool("accepted", accepted).
		Time("eta", eta).
		Msg("Job enqueued from stream")

	return c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", id, err)
	}
	return nil
}

func (c *Consumer) trimLoop(ctx context.Context) {
	ticker := time.NewTicker(trimEvery)
	defer ticker.Stop()

	for {
		if err := c.trim(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("stream", c.stream).Msg("Failed to trim stream")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// trim drops entries older than the retention window. Stream ids start with
// the millisecond timestamp of the entry.
func (c *Consumer) trim(ctx context.Context) error {
	if c.retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-c.retention)
	n, err := c.rdb.XTrimMinID(ctx, c.stream, fmt.Sprintf("%d-0", cutoff.UnixMilli())).Result()
	if err != nil {
		return fmt.Errorf("failed to trim stream: %w", err)
	}
	if n > 0 {
		log.Debug().Int64("trimmed", n).Time("cutoff", cutoff).Msg("Trimmed stream")
	}
	return nil
}

// decodeFields keeps the string-valued fields of a stream entry.
func decodeFields(values map[string]interface{}) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case []byte:
			fields[k] = string(val)
		}
	}
	return fields
}
