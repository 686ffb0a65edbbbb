package catalogjobs_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/cataloginfra"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogjobs"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogsrv"
	"github.com/Pikiko14/motowork-products/pkg/catalog/contapyme"
	"github.com/Pikiko14/motowork-products/pkg/fsx/fsxlocal"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/Pikiko14/motowork-products/pkg/jobx/jobxmemory"
	"github.com/Pikiko14/motowork-products/pkg/mediastore"
	"github.com/Pikiko14/motowork-products/pkg/mediastore/mediastorememory"
	"github.com/Pikiko14/motowork-products/pkg/ptrx"
)

const mediaQueue = "cloudinary_products"

type mediaEnv struct {
	repo    *cataloginfra.MemoryRepository
	store   *mediastorememory.MemoryStore
	staging *fsxlocal.LocalFileSystem
	svc     *catalogsrv.Service
	client  *jobx.Client
	queues  *jobx.Registry

	mu        sync.Mutex
	completed []string
	failed    []string
}

func newMediaEnv(t *testing.T) *mediaEnv {
	t.Helper()

	staging, err := fsxlocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging: %v", err)
	}

	env := &mediaEnv{
		repo:    cataloginfra.NewMemory(),
		store:   mediastorememory.New(),
		staging: staging,
	}

	broker := jobxmemory.NewMemoryBroker()
	t.Cleanup(broker.Close)

	env.client = jobx.NewClient(mediaQueue, broker,
		jobx.WithConcurrency(4),
		jobx.WithBackoff(40*time.Millisecond),
		jobx.WithPollInterval(10*time.Millisecond),
		jobx.WithDequeueTimeout(20*time.Millisecond),
		jobx.WithShutdownTimeout(time.Second),
	)
	env.client.OnCompleted(func(jobID string) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.completed = append(env.completed, jobID)
	})
	env.client.OnFailed(func(jobID, errMsg string) {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.failed = append(env.failed, jobID)
	})

	merger := catalogsrv.NewMerger(env.repo)
	handlers := catalogjobs.NewHandlers(env.repo, merger, env.store, env.staging, nil)
	handlers.RegisterMedia(env.client)

	env.queues = jobx.NewRegistry()
	env.queues.Add(env.client)
	env.queues.Start(context.Background())
	t.Cleanup(env.queues.Stop)

	env.svc = catalogsrv.NewService(env.repo, merger, env.staging, env.queues, catalogsrv.Config{
		MediaQueue: mediaQueue,
		SyncQueue:  "products_contapyme",
	})
	return env
}

func (e *mediaEnv) completedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.completed)
}

func (e *mediaEnv) stagedFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.staging.BasePath(), "products"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read staging dir: %v", err)
	}
	return len(entries)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// A banner upload whose first two store attempts fail completes on the
// third, appends exactly one asset and fires exactly one completed event.
func TestUploadSingle_SucceedsOnThirdAttempt(t *testing.T) {
	env := newMediaEnv(t)
	ctx := context.Background()

	product, err := env.repo.Create(ctx, &catalog.Product{Name: "CB 190R"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	env.store.FailNext = 2

	jobIDs, err := env.svc.AttachProductFiles(ctx, product.ID, catalogsrv.AttachRequest{
		BannerMobile: &catalogsrv.StagedFile{Name: "banner.jpg", Data: []byte("jpeg-bytes")},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(jobIDs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobIDs))
	}

	waitFor(t, 5*time.Second, func() bool { return env.completedCount() == 1 })

	info, err := env.svc.JobStatus(ctx, mediaQueue, jobIDs[0])
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if info.Status != jobx.JobStatusCompleted {
		t.Fatalf("expected completed job, got %s", info.Status)
	}
	if info.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", info.Attempts)
	}
	if env.store.Uploads() != 3 {
		t.Fatalf("expected 3 upload attempts, got %d", env.store.Uploads())
	}

	got, err := env.repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Banner) != 1 {
		t.Fatalf("expected exactly one banner asset, got %d", len(got.Banner))
	}
	if got.Banner[0].Variant != catalog.VariantMobile {
		t.Fatalf("expected mobile banner, got %s", got.Banner[0].Variant)
	}

	if n := env.stagedFiles(t); n != 0 {
		t.Fatalf("expected staging to be cleaned up, %d files remain", n)
	}
}

func TestUploadSingle_ConcurrentBannersBothLand(t *testing.T) {
	env := newMediaEnv(t)
	ctx := context.Background()

	product, err := env.repo.Create(ctx, &catalog.Product{Name: "CB 190R"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.AttachProductFiles(ctx, product.ID, catalogsrv.AttachRequest{
				BannerMobile: &catalogsrv.StagedFile{
					Name: fmt.Sprintf("banner-%d.jpg", i),
					Data: []byte(fmt.Sprintf("jpeg-%d", i)),
				},
			})
			if err != nil {
				t.Errorf("attach %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	waitFor(t, 5*time.Second, func() bool { return env.completedCount() == 2 })

	got, err := env.repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Banner) != 2 {
		t.Fatalf("expected both banner uploads to land, got %d", len(got.Banner))
	}
}

// flakyStore fails the nth upload call exactly once.
type flakyStore struct {
	*mediastorememory.MemoryStore
	mu     sync.Mutex
	failAt int
	calls  int
}

func (s *flakyStore) Upload(ctx context.Context, data []byte, folder string) (*mediastore.UploadResult, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failAt
	s.mu.Unlock()

	if fail {
		return nil, mediastore.NewUploadError(fmt.Errorf("injected failure on call %d", s.failAt))
	}
	return s.MemoryStore.Upload(ctx, data, folder)
}

func TestUploadBatch_ResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	repo := cataloginfra.NewMemory()
	store := &flakyStore{MemoryStore: mediastorememory.New(), failAt: 2}
	staging, err := fsxlocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging: %v", err)
	}
	merger := catalogsrv.NewMerger(repo)
	handlers := catalogjobs.NewHandlers(repo, merger, store, staging, nil)

	product, err := repo.Create(ctx, &catalog.Product{Name: "CB 190R"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	items := make([]catalogjobs.BatchItem, 3)
	for i := range items {
		path := staging.Join("products", fmt.Sprintf("img-%d.jpg", i))
		if err := staging.WriteFile(ctx, path, []byte(fmt.Sprintf("jpeg-%d", i))); err != nil {
			t.Fatalf("stage: %v", err)
		}
		items[i] = catalogjobs.BatchItem{StagingPath: path, Variant: catalog.VariantMobile}
	}

	payload, err := json.Marshal(catalogjobs.UploadBatchPayload{
		ProductID: product.ID,
		Folder:    "products",
		Role:      catalog.RoleImage,
		Items:     items,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	job := &jobx.JobInfo{ID: "batch-1", Type: catalogjobs.TypeUploadBatch, Payload: payload}

	if err := handlers.HandleUploadBatch(ctx, job); err == nil {
		t.Fatal("expected the second item to fail the attempt")
	}

	var progress catalogjobs.UploadBatchPayload
	if err := json.Unmarshal(job.Payload, &progress); err != nil {
		t.Fatalf("unmarshal progress: %v", err)
	}
	if !progress.Items[0].Uploaded || progress.Items[0].URL == "" {
		t.Fatalf("expected first item marked uploaded, got %+v", progress.Items[0])
	}
	if progress.Items[1].Uploaded || progress.Items[2].Uploaded {
		t.Fatalf("expected remaining items pending, got %+v", progress.Items[1:])
	}

	got, _ := repo.FindByID(ctx, product.ID)
	if len(got.Images) != 1 {
		t.Fatalf("expected 1 image after partial batch, got %d", len(got.Images))
	}

	// Retry resumes from the second item, not from scratch.
	if err := handlers.HandleUploadBatch(ctx, job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ = repo.FindByID(ctx, product.ID)
	if len(got.Images) != 3 {
		t.Fatalf("expected 3 images after resume, got %d", len(got.Images))
	}
	if store.MemoryStore.Uploads() != 3 {
		t.Fatalf("expected 3 successful uploads, got %d", store.MemoryStore.Uploads())
	}
}

func TestDeleteRemote_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := mediastorememory.New()
	repo := cataloginfra.NewMemory()
	staging, err := fsxlocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging: %v", err)
	}
	handlers := catalogjobs.NewHandlers(repo, catalogsrv.NewMerger(repo), store, staging, nil)

	res, err := store.Upload(ctx, []byte("jpeg"), "products")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	payload, _ := json.Marshal(catalogjobs.DeleteRemotePayload{URL: res.SecureURL})
	job := &jobx.JobInfo{ID: "del-1", Type: catalogjobs.TypeDeleteRemote, Payload: payload}

	if err := handlers.HandleDeleteRemote(ctx, job); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if store.Has(res.SecureURL) {
		t.Fatal("expected object removed")
	}

	// Deleting again, or deleting a URL the store never held, still
	// completes.
	if err := handlers.HandleDeleteRemote(ctx, job); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func contapymeServer(t *testing.T, sku, price, qimagenes, path string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/contacpime/product/"+sku, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"respuesta":{"datos":{"listaprecios":[{"ilista":"4","mprecio":"9"},{"ilista":"1","mprecio":%q}],"infobasica":{"qimagenes":%q}}}}]`, price, qimagenes)
	})
	mux.HandleFunc("/contacpime/product/"+sku+"/images", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"path":%q}`, path)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newSyncHandlers(t *testing.T, repo *cataloginfra.MemoryRepository, baseURL string) *catalogjobs.Handlers {
	t.Helper()
	staging, err := fsxlocal.New(t.TempDir())
	if err != nil {
		t.Fatalf("staging: %v", err)
	}
	source := contapyme.New(contapyme.Config{
		BaseURL:      baseURL,
		AssetBaseURL: "https://pymes.motowork.co",
	})
	return catalogjobs.NewHandlers(repo, catalogsrv.NewMerger(repo), mediastorememory.New(), staging, source)
}

func syncJob(t *testing.T, seed catalogjobs.ProductSeed) *jobx.JobInfo {
	t.Helper()
	payload, err := json.Marshal(catalogjobs.CatalogSyncPayload{Product: seed})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &jobx.JobInfo{ID: "sync-1", Type: catalogjobs.TypeCatalogSync, Payload: payload}
}

func TestCatalogSync_CreatesUnknownSKU(t *testing.T) {
	ctx := context.Background()
	server := contapymeServer(t, "CB190R", "1500000", "2", "/images/cb190r.jpg")
	repo := cataloginfra.NewMemory()
	handlers := newSyncHandlers(t, repo, server.URL)

	seed := catalogjobs.ProductSeed{Name: "CB 190R", SKU: "CB190R", Brand: "Honda", Active: true}
	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, err := repo.FindBySKU(ctx, "CB190R")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil {
		t.Fatal("expected product to be created")
	}
	if got.Price != 1500000 {
		t.Fatalf("expected price 1500000, got %v", got.Price)
	}
	if len(got.Images) != 2 {
		t.Fatalf("expected one desktop and one mobile asset, got %d", len(got.Images))
	}
	wantURL := "https://pymes.motowork.co/images/cb190r.jpg"
	variants := map[catalog.Variant]bool{}
	for _, img := range got.Images {
		if img.URL != wantURL {
			t.Fatalf("expected asset url %q, got %q", wantURL, img.URL)
		}
		variants[img.Variant] = true
	}
	if !variants[catalog.VariantDesktop] || !variants[catalog.VariantMobile] {
		t.Fatalf("expected both variants, got %v", variants)
	}
}

func TestCatalogSync_Idempotent(t *testing.T) {
	ctx := context.Background()
	server := contapymeServer(t, "CB190R", "1500000", "1", "/images/cb190r.jpg")
	repo := cataloginfra.NewMemory()
	handlers := newSyncHandlers(t, repo, server.URL)

	seed := catalogjobs.ProductSeed{Name: "CB 190R", SKU: "CB190R"}
	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, err := repo.FindBySKU(ctx, "CB190R")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, err := repo.FindBySKU(ctx, "CB190R")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	if second.Price != first.Price {
		t.Fatalf("price changed across identical syncs: %v vs %v", first.Price, second.Price)
	}
	if len(second.Images) != len(first.Images) {
		t.Fatalf("image count changed across identical syncs")
	}
	for i := range first.Images {
		if second.Images[i] != first.Images[i] {
			t.Fatalf("image %d changed across identical syncs: %+v vs %+v", i, first.Images[i], second.Images[i])
		}
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatal("expected unchanged sync to leave the product untouched")
	}
}

func TestCatalogSync_OverwritesKnownSKU(t *testing.T) {
	ctx := context.Background()
	server := contapymeServer(t, "CB190R", "1600000", "1", "/images/new.jpg")
	repo := cataloginfra.NewMemory()
	handlers := newSyncHandlers(t, repo, server.URL)

	_, err := repo.Create(ctx, &catalog.Product{
		Name:  "CB 190R",
		SKU:   "CB190R",
		Price: 1500000,
		Images: catalog.MediaAssetList{
			catalog.NewMediaAsset("https://pymes.motowork.co/images/old.jpg", catalog.VariantDesktop, false),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	seed := catalogjobs.ProductSeed{Name: "CB 190R", SKU: "CB190R"}
	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, err := repo.FindBySKU(ctx, "CB190R")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Price != 1600000 {
		t.Fatalf("expected refreshed price, got %v", got.Price)
	}
	if len(got.Images) != 2 || got.Images[0].URL != "https://pymes.motowork.co/images/new.jpg" {
		t.Fatalf("expected images replaced wholesale, got %+v", got.Images)
	}
}

func TestCatalogSync_KeepsSeedPriceWhenCatalogOmitsIt(t *testing.T) {
	ctx := context.Background()

	// Price list 1 is absent upstream, so the seed's own price stands.
	mux := http.NewServeMux()
	mux.HandleFunc("/contacpime/product/XTZ250", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"respuesta":{"datos":{"listaprecios":[{"ilista":"4","mprecio":"9"}],"infobasica":{"qimagenes":"0"}}}}]`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	repo := cataloginfra.NewMemory()
	handlers := newSyncHandlers(t, repo, server.URL)

	seed := catalogjobs.ProductSeed{Name: "XTZ 250", SKU: "XTZ250", Price: ptrx.Ptr(18900000.0)}
	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("sync: %v", err)
	}

	first, err := repo.FindBySKU(ctx, "XTZ250")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if first == nil {
		t.Fatal("expected product to be created")
	}
	if first.Price != 18900000 {
		t.Fatalf("seed price lost on create: got %v, want 18900000", first.Price)
	}

	// Re-running the same seed stays a no-op.
	if err := handlers.HandleCatalogSync(ctx, syncJob(t, seed)); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, err := repo.FindBySKU(ctx, "XTZ250")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatal("expected unchanged sync to leave the product untouched")
	}
}

func TestCatalogSync_SkipsSeedWithoutSKU(t *testing.T) {
	ctx := context.Background()
	repo := cataloginfra.NewMemory()
	// No server: a seed without sku must not reach the network at all.
	handlers := newSyncHandlers(t, repo, "http://127.0.0.1:1")

	if err := handlers.HandleCatalogSync(ctx, syncJob(t, catalogjobs.ProductSeed{Name: "no sku"})); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}
