// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, staging FS, media
// store) and wires the catalog module, its job handlers and the queue
// registry. This is the only place that knows about all of them.
package main

import (
	"context"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/cataloginfra"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogjobs"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogsrv"
	"github.com/Pikiko14/motowork-products/pkg/catalog/contapyme"
	"github.com/Pikiko14/motowork-products/pkg/config"
	"github.com/Pikiko14/motowork-products/pkg/fsx"
	"github.com/Pikiko14/motowork-products/pkg/fsx/fsxlocal"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/Pikiko14/motowork-products/pkg/jobx/jobxredis"
	"github.com/Pikiko14/motowork-products/pkg/logx"
	"github.com/Pikiko14/motowork-products/pkg/mediastore"
	"github.com/Pikiko14/motowork-products/pkg/mediastore/mediastorememory"
	"github.com/Pikiko14/motowork-products/pkg/mediastore/mediastores3"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the wired catalog module.
type Container struct {
	Config *config.Config

	// Infrastructure
	DB       *sqlx.DB
	Redis    *redis.Client
	S3Client *s3.Client
	Staging  fsx.FileSystem
	Media    mediastore.MediaStore

	// Catalog module
	Products catalog.ProductRepository
	Service  *catalogsrv.Service
	Queues   *jobx.Registry
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initCatalog()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis, staging, media store
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Redis (job broker)
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	// 3. Staging area for multipart uploads
	staging, err := fsxlocal.New(c.Config.Storage.StagingDir)
	if err != nil {
		logx.Fatalf("Failed to initialize staging directory: %v", err)
	}
	c.Staging = staging
	logx.Infof("  ✅ Staging directory ready (path: %s)", staging.BasePath())

	// 4. Media store
	c.initMediaStore()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initMediaStore() {
	switch c.Config.Storage.Mode {
	case "s3":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
			awsConfig.WithRegion(c.Config.Storage.Region))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(awsCfg)
		c.Media = mediastores3.New(c.S3Client, mediastores3.Config{
			Bucket:        c.Config.Storage.Bucket,
			Region:        c.Config.Storage.Region,
			PublicBaseURL: c.Config.Storage.PublicBaseURL,
		})
		logx.Infof("  ✅ S3 media store configured (bucket: %s, region: %s)",
			c.Config.Storage.Bucket, c.Config.Storage.Region)

	case "local":
		// Volatile store for local development, objects live in memory.
		c.Media = mediastorememory.New()
		logx.Warn("  ⚠️ In-memory media store configured, uploads do not survive restarts")

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", c.Config.Storage.Mode)
	}
}

// ---------------------------------------------------------------------------
// Catalog module — repository, merge policy, queues, handlers, service
// ---------------------------------------------------------------------------

func (c *Container) initCatalog() {
	logx.Info("📦 Initializing catalog module...")

	repo := cataloginfra.NewPostgres(c.DB)
	c.Products = repo

	merger := catalogsrv.NewMerger(repo)

	source := contapyme.New(contapyme.Config{
		BaseURL:      c.Config.Contapyme.BaseURL,
		AssetBaseURL: c.Config.Contapyme.AssetBaseURL,
	})

	handlers := catalogjobs.NewHandlers(repo, merger, c.Media, c.Staging, source)

	broker := jobxredis.NewRedisBroker(c.Redis)
	jobs := c.Config.Jobs

	mediaClient := jobx.NewClient(jobs.MediaQueue, broker,
		jobx.WithConcurrency(jobs.MediaConcurrency),
		jobx.WithMaxAttempts(jobs.MaxAttempts),
		jobx.WithBackoff(jobs.Backoff),
		jobx.WithPollInterval(jobs.PollInterval),
		jobx.WithDequeueTimeout(jobs.DequeueTimeout),
		jobx.WithShutdownTimeout(jobs.ShutdownTimeout),
		jobx.WithStalledAfter(jobs.StalledAfter),
	)
	handlers.RegisterMedia(mediaClient)

	// The sync queue always runs a single worker so writes against the
	// external catalog stay serialized.
	syncClient := jobx.NewClient(jobs.SyncQueue, broker,
		jobx.WithConcurrency(1),
		jobx.WithMaxAttempts(jobs.MaxAttempts),
		jobx.WithBackoff(jobs.Backoff),
		jobx.WithPollInterval(jobs.PollInterval),
		jobx.WithDequeueTimeout(jobs.DequeueTimeout),
		jobx.WithShutdownTimeout(jobs.ShutdownTimeout),
		jobx.WithStalledAfter(jobs.StalledAfter),
	)
	handlers.RegisterSync(syncClient)

	for _, client := range []*jobx.Client{mediaClient, syncClient} {
		queue := client.Name()
		client.OnCompleted(func(jobID string) {
			logx.WithField("queue", queue).Infof("job completed: %s", jobID)
		})
		client.OnFailed(func(jobID, errMsg string) {
			logx.WithField("queue", queue).Errorf("job failed after retries: %s: %s", jobID, errMsg)
		})
	}

	c.Queues = jobx.NewRegistry()
	c.Queues.Add(mediaClient)
	c.Queues.Add(syncClient)

	c.Service = catalogsrv.NewService(repo, merger, c.Staging, c.Queues, catalogsrv.Config{
		MediaQueue: jobs.MediaQueue,
		SyncQueue:  jobs.SyncQueue,
		Folder:     c.Config.Storage.Folder,
	})

	logx.Infof("  ✅ Queues wired (%s x%d, %s x1)", jobs.MediaQueue, jobs.MediaConcurrency, jobs.SyncQueue)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("🔄 Starting queue workers...")
	c.Queues.Start(ctx)
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.Queues != nil {
		c.Queues.Stop()
		logx.Info("  ✅ Queue workers drained")
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
