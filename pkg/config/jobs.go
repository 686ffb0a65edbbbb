package config

import "time"

// JobsConfig configures the background job queues.
type JobsConfig struct {
	// MediaQueue and SyncQueue are the two queue names the service drains.
	MediaQueue string
	SyncQueue  string

	// MediaConcurrency bounds workers on the media queue. The sync queue is
	// always drained by a single worker so third-party updates apply serially.
	MediaConcurrency int

	MaxAttempts     int
	Backoff         time.Duration
	PollInterval    time.Duration
	DequeueTimeout  time.Duration
	ShutdownTimeout time.Duration

	// StalledAfter is how long a job may sit active before the scheduler
	// treats its worker as dead and re-delivers it.
	StalledAfter time.Duration
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		MediaQueue:       getEnv("JOBS_MEDIA_QUEUE", "cloudinary_products"),
		SyncQueue:        getEnv("JOBS_SYNC_QUEUE", "products_contapyme"),
		MediaConcurrency: getEnvInt("JOBS_MEDIA_CONCURRENCY", 4),
		MaxAttempts:      getEnvInt("JOBS_MAX_ATTEMPTS", 3),
		Backoff:          getEnvDuration("JOBS_BACKOFF", 5*time.Second),
		PollInterval:     getEnvDuration("JOBS_POLL_INTERVAL", time.Second),
		DequeueTimeout:   getEnvDuration("JOBS_DEQUEUE_TIMEOUT", 5*time.Second),
		ShutdownTimeout:  getEnvDuration("JOBS_SHUTDOWN_TIMEOUT", 30*time.Second),
		StalledAfter:     getEnvDuration("JOBS_STALLED_AFTER", 30*time.Second),
	}
}
