package jobx

import (
	"context"
	"sync"
)

// Registry is the process-wide set of queue clients, built once at startup
// and injected wherever jobs are enqueued. It owns start/drain/stop of every
// queue, replacing ad-hoc per-caller queue construction.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates an empty queue registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Add registers a queue client under its queue name.
func (r *Registry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.Name()] = client
}

// Get returns the client for a queue name.
func (r *Registry) Get(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, jobxErrors.New(ErrUnknownQueue).WithDetail("queue", name)
	}
	return client, nil
}

// Enqueue submits a job to the named queue.
func (r *Registry) Enqueue(ctx context.Context, queue string, job Job) (string, error) {
	client, err := r.Get(queue)
	if err != nil {
		return "", err
	}
	return client.Enqueue(ctx, job)
}

// GetJob looks the job up through the named queue's broker.
func (r *Registry) GetJob(ctx context.Context, queue, jobID string) (*JobInfo, error) {
	client, err := r.Get(queue)
	if err != nil {
		return nil, err
	}
	return client.GetJob(ctx, jobID)
}

// Start launches every registered client. It returns immediately; workers
// run until Stop is called or ctx is cancelled.
func (r *Registry) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.cancel = cancel
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, client := range clients {
		r.wg.Add(1)
		go func(c *Client) {
			defer r.wg.Done()
			_ = c.Start(runCtx)
		}(client)
	}
}

// Stop cancels all clients and waits for them to drain. Each client bounds
// its own drain with its shutdown timeout.
func (r *Registry) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}
