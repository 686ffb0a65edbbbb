// Package jobxredis implements the jobx broker on Redis: one list per ready
// queue (LPUSH plus blocking pop keeps enqueue order), one processing list
// holding the ids workers have in flight, one sorted set per queue for
// retry-delayed jobs and one key per job record. A job moves atomically
// from ready to processing on dequeue, so a worker that dies mid-job
// leaves a trace the stalled sweep can return to the ready list.
package jobxredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/errx"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroker implements jobx.Broker backed by Redis.
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker creates a Redis-backed broker.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func queueKey(name string) string      { return fmt.Sprintf("jobs:queue:%s", name) }
func processingKey(name string) string { return fmt.Sprintf("jobs:processing:%s", name) }
func scheduledKey(name string) string  { return fmt.Sprintf("jobs:scheduled:%s", name) }
func jobKey(id string) string          { return fmt.Sprintf("jobs:job:%s", id) }

func (b *RedisBroker) Enqueue(ctx context.Context, queue string, job jobx.Job) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	info := jobx.JobInfo{
		ID:          id,
		Queue:       queue,
		Type:        job.Type,
		Payload:     job.Payload,
		Status:      jobx.JobStatusPending,
		MaxAttempts: job.MaxAttempts,
		Backoff:     job.Backoff,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", redisErrors.NewWithCause(ErrMarshal, err)
	}

	pipe := b.rdb.Pipeline()
	pipe.Set(ctx, jobKey(id), data, 0)
	pipe.LPush(ctx, queueKey(queue), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", redisErrors.NewWithCause(ErrEnqueue, err).WithDetail("queue", queue)
	}

	return id, nil
}

func (b *RedisBroker) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := b.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
		}
		return nil, redisErrors.NewWithCause(ErrGetJob, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}
	return &info, nil
}

// Dequeue blocks until a job is ready or the timeout expires. The job id
// moves atomically onto the processing list, the job becomes active and its
// attempt counter advances.
func (b *RedisBroker) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*jobx.JobInfo, error) {
	jobID, err := b.rdb.BLMove(ctx, queueKey(queue), processingKey(queue), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, redisErrors.NewWithCause(ErrDequeue, err).WithDetail("queue", queue)
	}

	info, err := b.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	info.Status = jobx.JobStatusActive
	info.Attempts++
	info.UpdatedAt = time.Now().UTC()

	if err := b.saveJob(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (b *RedisBroker) Complete(ctx context.Context, jobID string) error {
	info, err := b.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	info.Status = jobx.JobStatusCompleted
	info.Error = ""
	info.UpdatedAt = time.Now().UTC()

	if err := b.saveJob(ctx, info); err != nil {
		return redisErrors.NewWithCause(ErrComplete, err).WithDetail("job_id", jobID)
	}
	if err := b.rdb.LRem(ctx, processingKey(info.Queue), 1, jobID).Err(); err != nil {
		return redisErrors.NewWithCause(ErrComplete, err).WithDetail("job_id", jobID)
	}
	return nil
}

// Fail records the attempt error and persists the handler's payload so
// resumable jobs (batch uploads) keep their per-item progress across
// retries. Returns true while the attempt budget allows another run.
func (b *RedisBroker) Fail(ctx context.Context, jobID string, errMsg string, payload json.RawMessage) (bool, error) {
	info, err := b.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	shouldRetry := info.Attempts < info.MaxAttempts

	if shouldRetry {
		info.Status = jobx.JobStatusRetrying
	} else {
		info.Status = jobx.JobStatusFailed
	}
	info.Error = errMsg
	if payload != nil {
		info.Payload = payload
	}
	info.UpdatedAt = time.Now().UTC()

	if err := b.saveJob(ctx, info); err != nil {
		return false, redisErrors.NewWithCause(ErrFail, err).WithDetail("job_id", jobID)
	}
	if err := b.rdb.LRem(ctx, processingKey(info.Queue), 1, jobID).Err(); err != nil {
		return false, redisErrors.NewWithCause(ErrFail, err).WithDetail("job_id", jobID)
	}
	return shouldRetry, nil
}

func (b *RedisBroker) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := b.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	score := float64(time.Now().UTC().Add(delay).UnixMilli())
	if err := b.rdb.ZAdd(ctx, scheduledKey(info.Queue), redis.Z{
		Score:  score,
		Member: jobID,
	}).Err(); err != nil {
		return redisErrors.NewWithCause(ErrRetry, err).WithDetail("job_id", jobID)
	}
	return nil
}

// promoteScript atomically moves due jobs from the scheduled set to the
// ready list.
var promoteScript = redis.NewScript(`
local scheduled_key = KEYS[1]
local queue_key = KEYS[2]
local now = tonumber(ARGV[1])
local ids = redis.call('ZRANGEBYSCORE', scheduled_key, '-inf', now)
if #ids > 0 then
    for _, id in ipairs(ids) do
        redis.call('LPUSH', queue_key, id)
    end
    redis.call('ZREMRANGEBYSCORE', scheduled_key, '-inf', now)
end
return #ids
`)

func (b *RedisBroker) PromoteScheduled(ctx context.Context, queue string) error {
	now := strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)

	err := promoteScript.Run(ctx, b.rdb,
		[]string{scheduledKey(queue), queueKey(queue)},
		now,
	).Err()
	if err != nil && err != redis.Nil {
		return redisErrors.NewWithCause(ErrPromote, err).WithDetail("queue", queue)
	}
	return nil
}

// RequeueStalled walks the processing list and pushes back every job that
// has sat active past the cutoff. That happens when the worker holding the
// job died before Complete or Fail; the record would otherwise stay active
// forever with nothing left to deliver it.
func (b *RedisBroker) RequeueStalled(ctx context.Context, queue string, olderThan time.Duration) error {
	ids, err := b.rdb.LRange(ctx, processingKey(queue), 0, -1).Result()
	if err != nil {
		return redisErrors.NewWithCause(ErrRequeue, err).WithDetail("queue", queue)
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	for _, id := range ids {
		info, err := b.GetJob(ctx, id)
		if err != nil {
			if errx.IsCode(err, ErrNotFound) {
				// dangling entry, its record is gone
				b.rdb.LRem(ctx, processingKey(queue), 1, id)
				continue
			}
			return err
		}
		if info.Status != jobx.JobStatusActive || info.UpdatedAt.After(cutoff) {
			continue
		}

		removed, err := b.rdb.LRem(ctx, processingKey(queue), 1, id).Result()
		if err != nil {
			return redisErrors.NewWithCause(ErrRequeue, err).WithDetail("job_id", id)
		}
		if removed == 0 {
			// a live worker resolved it between the scan and the remove
			continue
		}

		info.Status = jobx.JobStatusPending
		info.UpdatedAt = time.Now().UTC()
		if err := b.saveJob(ctx, info); err != nil {
			return redisErrors.NewWithCause(ErrRequeue, err).WithDetail("job_id", id)
		}
		if err := b.rdb.LPush(ctx, queueKey(queue), id).Err(); err != nil {
			return redisErrors.NewWithCause(ErrRequeue, err).WithDetail("job_id", id)
		}
	}
	return nil
}

func (b *RedisBroker) saveJob(ctx context.Context, info *jobx.JobInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", info.ID)
	}
	return b.rdb.Set(ctx, jobKey(info.ID), data, 0).Err()
}
