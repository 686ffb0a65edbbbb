// Package jobx is the asynchronous task queue: named broker-backed queues,
// per-queue worker pools with bounded concurrency, fixed-backoff retries and
// completed/failed listeners. One Client drains one queue; the Registry owns
// every client's lifecycle.
package jobx

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/logx"
)

// HandlerFunc processes one job attempt. A nil return completes the job; an
// error triggers retry until the attempt budget is spent.
type HandlerFunc func(ctx context.Context, job *JobInfo) error

// CompletedListener observes terminal success of a job.
type CompletedListener func(jobID string)

// FailedListener observes terminal failure of a job, after retries are
// exhausted.
type FailedListener func(jobID string, errMsg string)

// Broker provides durable storage and delivery of jobs for one or more
// queues.
type Broker interface {
	// Enqueue appends the job to the named queue and returns its ID.
	Enqueue(ctx context.Context, queue string, job Job) (string, error)

	// GetJob returns the stored state of a job.
	GetJob(ctx context.Context, jobID string) (*JobInfo, error)

	// Dequeue pops the oldest ready job from the queue, marking it active
	// and counting the attempt. Returns nil without error on timeout.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) (*JobInfo, error)

	// Complete marks a job as successfully finished.
	Complete(ctx context.Context, jobID string) error

	// Fail records a failed attempt together with the handler's payload
	// progress, and reports whether the attempt budget allows a retry.
	Fail(ctx context.Context, jobID string, errMsg string, payload json.RawMessage) (retry bool, err error)

	// Retry schedules the job to become ready again after the delay.
	Retry(ctx context.Context, jobID string, delay time.Duration) error

	// PromoteScheduled moves jobs whose retry delay has elapsed back onto
	// the ready queue.
	PromoteScheduled(ctx context.Context, queue string) error

	// RequeueStalled returns jobs that were dequeued but never resolved,
	// because the worker holding them died, to the ready queue once they
	// have sat active for longer than olderThan.
	RequeueStalled(ctx context.Context, queue string, olderThan time.Duration) error
}

// Options tune one queue client.
type Options struct {
	Concurrency     int
	MaxAttempts     int
	Backoff         time.Duration
	PollInterval    time.Duration
	DequeueTimeout  time.Duration
	ShutdownTimeout time.Duration
	StalledAfter    time.Duration
}

func defaultOptions() Options {
	return Options{
		Concurrency:     4,
		MaxAttempts:     3,
		Backoff:         5 * time.Second,
		PollInterval:    time.Second,
		DequeueTimeout:  5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StalledAfter:    30 * time.Second,
	}
}

// Option is a functional option for a queue client.
type Option func(*Options)

// WithConcurrency sets the number of worker goroutines for the queue.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithMaxAttempts sets the default attempt budget for jobs on this queue.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// WithBackoff sets the default fixed retry delay for jobs on this queue.
func WithBackoff(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Backoff = d
		}
	}
}

// WithPollInterval sets the scheduler promotion interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithDequeueTimeout sets the timeout of the blocking dequeue call.
func WithDequeueTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DequeueTimeout = d
		}
	}
}

// WithShutdownTimeout bounds the drain wait on Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// WithStalledAfter sets how long a job may sit active before the scheduler
// hands it back to the ready queue. Must exceed the longest expected
// handler run, or healthy jobs get processed twice.
func WithStalledAfter(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StalledAfter = d
		}
	}
}

// Client binds one named queue to a handler table and a worker pool.
type Client struct {
	name   string
	broker Broker
	opts   Options

	mu          sync.RWMutex
	handlers    map[string]HandlerFunc
	onCompleted []CompletedListener
	onFailed    []FailedListener
	running     bool
}

// NewClient creates a client for the named queue.
func NewClient(name string, broker Broker, options ...Option) *Client {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{
		name:     name,
		broker:   broker,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
	}
}

// Name returns the queue name.
func (c *Client) Name() string {
	return c.name
}

// Register adds a handler for a job type.
func (c *Client) Register(jobType string, handler HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[jobType] = handler
}

// OnCompleted subscribes a listener to terminal job success.
func (c *Client) OnCompleted(fn CompletedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCompleted = append(c.onCompleted, fn)
}

// OnFailed subscribes a listener to terminal job failure.
func (c *Client) OnFailed(fn FailedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFailed = append(c.onFailed, fn)
}

// Enqueue submits a job to this queue, applying the queue defaults for
// attempts and backoff. The returned ID is broker-assigned and opaque.
func (c *Client) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.MaxAttempts == 0 {
		job.MaxAttempts = c.opts.MaxAttempts
	}
	if job.Backoff == 0 {
		job.Backoff = c.opts.Backoff
	}
	return c.broker.Enqueue(ctx, c.name, job)
}

// GetJob returns the broker's current record of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobInfo, error) {
	return c.broker.GetJob(ctx, jobID)
}

// Start runs the scheduler and worker goroutines until ctx is cancelled,
// then drains in-flight jobs up to the shutdown timeout.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return jobxErrors.New(ErrAlreadyRunning).WithDetail("queue", c.name)
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logx.Infof("jobx: queue %q starting %d workers", c.name, c.opts.Concurrency)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()

	for i := 0; i < c.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.workerLoop(ctx, id)
		}(i)
	}

	<-ctx.Done()
	logx.Infof("jobx: queue %q shutting down", c.name)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Infof("jobx: queue %q workers stopped", c.name)
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warnf("jobx: queue %q shutdown timed out, abandoned jobs return via the stalled sweep", c.name)
	}

	return nil
}

// schedulerLoop promotes retry-delayed jobs back onto the ready queue and
// sweeps jobs abandoned by dead workers.
func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.broker.PromoteScheduled(ctx, c.name); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warnf("jobx: queue %q failed to promote scheduled jobs", c.name)
			}
			if err := c.broker.RequeueStalled(ctx, c.name, c.opts.StalledAfter); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warnf("jobx: queue %q failed to requeue stalled jobs", c.name)
			}
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := c.broker.Dequeue(ctx, c.name, c.opts.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("jobx: queue %q worker %d dequeue error", c.name, id)
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if job == nil {
			continue
		}

		c.processJob(ctx, job)
	}
}

// processJob runs one attempt to completion. There is no mid-handler
// cancellation: an active job finishes or spends its attempt budget.
func (c *Client) processJob(ctx context.Context, job *JobInfo) {
	c.mu.RLock()
	handler, ok := c.handlers[job.Type]
	c.mu.RUnlock()

	if !ok {
		logx.Warnf("jobx: queue %q has no handler for job type %q (id=%s)", c.name, job.Type, job.ID)
		_, _ = c.broker.Fail(ctx, job.ID, jobxErrors.New(ErrNoHandler).Error(), job.Payload)
		c.emitFailed(job.ID, "no handler registered for job type")
		return
	}

	if err := handler(ctx, job); err != nil {
		logx.WithError(err).Warnf("jobx: job %s (queue=%s type=%s attempt=%d/%d) failed",
			job.ID, c.name, job.Type, job.Attempts, job.MaxAttempts)

		shouldRetry, failErr := c.broker.Fail(ctx, job.ID, err.Error(), job.Payload)
		if failErr != nil {
			logx.WithError(failErr).Errorf("jobx: failed to record failure of job %s", job.ID)
			return
		}

		if !shouldRetry {
			c.emitFailed(job.ID, err.Error())
			return
		}

		backoff := job.Backoff
		if backoff <= 0 {
			backoff = c.opts.Backoff
		}
		if retryErr := c.broker.Retry(ctx, job.ID, backoff); retryErr != nil {
			logx.WithError(retryErr).Errorf("jobx: failed to schedule retry of job %s", job.ID)
		}
		return
	}

	if err := c.broker.Complete(ctx, job.ID); err != nil {
		logx.WithError(err).Errorf("jobx: failed to complete job %s", job.ID)
		return
	}
	c.emitCompleted(job.ID)
}

func (c *Client) emitCompleted(jobID string) {
	c.mu.RLock()
	listeners := c.onCompleted
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(jobID)
	}
}

func (c *Client) emitFailed(jobID, errMsg string) {
	c.mu.RLock()
	listeners := c.onFailed
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(jobID, errMsg)
	}
}
