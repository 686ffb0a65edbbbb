// Package jobxmemory implements the jobx broker in process memory. It keeps
// the Redis broker's semantics (FIFO ready list, delayed retry set, per-job
// record) and exists for tests and broker-less local runs.
package jobxmemory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/errx"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/google/uuid"
)

var memErrors = errx.NewRegistry("JOBX_MEMORY")

var (
	ErrNotFound  = memErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Job record not found")
	ErrQueueFull = memErrors.Register("QUEUE_FULL", errx.TypeExternal, 502, "Ready queue is full")
	ErrClosed    = memErrors.Register("CLOSED", errx.TypeExternal, 502, "Broker is closed")
)

const readyCapacity = 1024

type scheduledJob struct {
	id string
	at time.Time
}

// MemoryBroker implements jobx.Broker without external infrastructure.
type MemoryBroker struct {
	mu        sync.Mutex
	ready     map[string]chan string
	scheduled map[string][]scheduledJob
	jobs      map[string]*jobx.JobInfo
	closed    bool
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		ready:     make(map[string]chan string),
		scheduled: make(map[string][]scheduledJob),
		jobs:      make(map[string]*jobx.JobInfo),
	}
}

func (b *MemoryBroker) readyQueue(name string) chan string {
	ch, ok := b.ready[name]
	if !ok {
		ch = make(chan string, readyCapacity)
		b.ready[name] = ch
	}
	return ch
}

func (b *MemoryBroker) Enqueue(ctx context.Context, queue string, job jobx.Job) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", memErrors.New(ErrClosed)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	b.jobs[id] = &jobx.JobInfo{
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

	select {
	case b.readyQueue(queue) <- id:
		return id, nil
	default:
		delete(b.jobs, id)
		return "", memErrors.New(ErrQueueFull).WithDetail("queue", queue)
	}
}

func (b *MemoryBroker) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.jobs[jobID]
	if !ok {
		return nil, memErrors.New(ErrNotFound).WithDetail("job_id", jobID)
	}
	clone := *info
	return &clone, nil
}

func (b *MemoryBroker) Dequeue(ctx context.Context, queue string, timeout time.Duration) (*jobx.JobInfo, error) {
	b.mu.Lock()
	ch := b.readyQueue(queue)
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
		return nil, nil
	case id := <-ch:
		b.mu.Lock()
		defer b.mu.Unlock()

		info, ok := b.jobs[id]
		if !ok {
			return nil, memErrors.New(ErrNotFound).WithDetail("job_id", id)
		}
		info.Status = jobx.JobStatusActive
		info.Attempts++
		info.UpdatedAt = time.Now().UTC()
		clone := *info
		return &clone, nil
	}
}

func (b *MemoryBroker) Complete(ctx context.Context, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.jobs[jobID]
	if !ok {
		return memErrors.New(ErrNotFound).WithDetail("job_id", jobID)
	}
	info.Status = jobx.JobStatusCompleted
	info.Error = ""
	info.UpdatedAt = time.Now().UTC()
	return nil
}

func (b *MemoryBroker) Fail(ctx context.Context, jobID string, errMsg string, payload json.RawMessage) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.jobs[jobID]
	if !ok {
		return false, memErrors.New(ErrNotFound).WithDetail("job_id", jobID)
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
	return shouldRetry, nil
}

func (b *MemoryBroker) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.jobs[jobID]
	if !ok {
		return memErrors.New(ErrNotFound).WithDetail("job_id", jobID)
	}
	b.scheduled[info.Queue] = append(b.scheduled[info.Queue], scheduledJob{
		id: jobID,
		at: time.Now().UTC().Add(delay),
	})
	return nil
}

func (b *MemoryBroker) PromoteScheduled(ctx context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	pending := b.scheduled[queue]
	remaining := pending[:0]
	ch := b.readyQueue(queue)

	for _, entry := range pending {
		if entry.at.After(now) {
			remaining = append(remaining, entry)
			continue
		}
		select {
		case ch <- entry.id:
		default:
			// ready queue full, keep it scheduled
			remaining = append(remaining, entry)
		}
	}
	b.scheduled[queue] = remaining
	return nil
}

// RequeueStalled pushes back every job of the queue that has sat active
// past the cutoff, mirroring the Redis broker's sweep of jobs abandoned by
// dead workers.
func (b *MemoryBroker) RequeueStalled(ctx context.Context, queue string, olderThan time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	ch := b.readyQueue(queue)

	for id, info := range b.jobs {
		if info.Queue != queue || info.Status != jobx.JobStatusActive || info.UpdatedAt.After(cutoff) {
			continue
		}
		select {
		case ch <- id:
			info.Status = jobx.JobStatusPending
			info.UpdatedAt = time.Now().UTC()
		default:
			// ready queue full, pick it up on the next sweep
		}
	}
	return nil
}

// Close rejects further enqueues. Existing records stay readable.
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
