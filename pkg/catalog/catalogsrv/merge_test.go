package catalogsrv_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/cataloginfra"
	"github.com/Pikiko14/motowork-products/pkg/catalog/catalogsrv"
)

func newProduct(t *testing.T, repo catalog.ProductRepository) *catalog.Product {
	t.Helper()
	p, err := repo.Create(context.Background(), &catalog.Product{
		Name: "CB 190R",
		SKU:  "CB190R",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func defaultsPerVariant(l catalog.MediaAssetList) map[catalog.Variant]int {
	counts := make(map[catalog.Variant]int)
	for _, a := range l {
		if a.IsDefault {
			counts[a.Variant]++
		}
	}
	return counts
}

func TestMerger_ConcurrentAppendsAllLand(t *testing.T) {
	repo := cataloginfra.NewMemory()
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			asset := catalog.NewMediaAsset(fmt.Sprintf("https://media.test/products/%d.jpg", i), catalog.VariantMobile, false)
			errs <- merger.AppendAsset(context.Background(), product.ID, catalog.RoleImage, asset)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Images) != n {
		t.Fatalf("expected %d images, got %d", n, len(got.Images))
	}
}

func TestMerger_DefaultImageExclusivePerVariant(t *testing.T) {
	repo := cataloginfra.NewMemory()
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)
	ctx := context.Background()

	m1 := catalog.NewMediaAsset("https://media.test/products/m1.jpg", catalog.VariantMobile, false)
	m2 := catalog.NewMediaAsset("https://media.test/products/m2.jpg", catalog.VariantMobile, false)
	d1 := catalog.NewMediaAsset("https://media.test/products/d1.jpg", catalog.VariantDesktop, false)
	for _, a := range []catalog.MediaAsset{m1, m2, d1} {
		if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := merger.SetDefaultImage(ctx, product.ID, m1.ID, true); err != nil {
		t.Fatalf("set default m1: %v", err)
	}
	if err := merger.SetDefaultImage(ctx, product.ID, d1.ID, true); err != nil {
		t.Fatalf("set default d1: %v", err)
	}
	if err := merger.SetDefaultImage(ctx, product.ID, m2.ID, true); err != nil {
		t.Fatalf("set default m2: %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	counts := defaultsPerVariant(got.Images)
	if counts[catalog.VariantMobile] != 1 || counts[catalog.VariantDesktop] != 1 {
		t.Fatalf("expected one default per variant, got %v", counts)
	}
	def := got.Images.DefaultFor(catalog.VariantMobile)
	if def == nil || def.ID != m2.ID {
		t.Fatalf("expected m2 as mobile default, got %+v", def)
	}
	if d := got.Images.DefaultFor(catalog.VariantDesktop); d == nil || d.ID != d1.ID {
		t.Fatalf("expected d1 as desktop default, got %+v", d)
	}
}

func TestMerger_AppendingDefaultUnsetsPrevious(t *testing.T) {
	repo := cataloginfra.NewMemory()
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)
	ctx := context.Background()

	first := catalog.NewMediaAsset("https://media.test/products/a.jpg", catalog.VariantMobile, true)
	second := catalog.NewMediaAsset("https://media.test/products/b.jpg", catalog.VariantMobile, true)
	if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if counts := defaultsPerVariant(got.Images); counts[catalog.VariantMobile] != 1 {
		t.Fatalf("expected a single mobile default, got %v", counts)
	}
	if def := got.Images.DefaultFor(catalog.VariantMobile); def == nil || def.ID != second.ID {
		t.Fatalf("expected second asset as default, got %+v", def)
	}
}

func TestMerger_RemoveImageReturnsURL(t *testing.T) {
	repo := cataloginfra.NewMemory()
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)
	ctx := context.Background()

	keep := catalog.NewMediaAsset("https://media.test/products/keep.jpg", catalog.VariantMobile, false)
	drop := catalog.NewMediaAsset("https://media.test/products/drop.jpg", catalog.VariantMobile, false)
	for _, a := range []catalog.MediaAsset{keep, drop} {
		if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	url, err := merger.RemoveImage(ctx, product.ID, catalog.RoleImage, drop.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if url != drop.URL {
		t.Fatalf("expected removed url %q, got %q", drop.URL, url)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Images) != 1 || got.Images[0].ID != keep.ID {
		t.Fatalf("expected only the kept image, got %+v", got.Images)
	}

	if _, err := merger.RemoveImage(ctx, product.ID, catalog.RoleImage, drop.ID); !catalog.IsNotFound(err) {
		t.Fatalf("expected image not found, got %v", err)
	}
}

// conflictRepo fails the first n guarded swaps with a merge conflict.
type conflictRepo struct {
	*cataloginfra.MemoryRepository
	mu        sync.Mutex
	conflicts int
	swaps     int
}

func (r *conflictRepo) SwapMediaCollection(ctx context.Context, id string, role catalog.MediaRole, assets catalog.MediaAssetList, expected catalog.MediaAssetList) error {
	r.mu.Lock()
	r.swaps++
	inject := r.conflicts > 0
	if inject {
		r.conflicts--
	}
	r.mu.Unlock()

	if inject {
		return catalog.NewMergeConflict(id, role)
	}
	return r.MemoryRepository.SwapMediaCollection(ctx, id, role, assets, expected)
}

func TestMerger_RetriesMergeConflicts(t *testing.T) {
	repo := &conflictRepo{MemoryRepository: cataloginfra.NewMemory(), conflicts: 2}
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)
	ctx := context.Background()

	asset := catalog.NewMediaAsset("https://media.test/products/x.jpg", catalog.VariantMobile, false)
	if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, asset); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := merger.SetDefaultImage(ctx, product.ID, asset.ID, true); err != nil {
		t.Fatalf("expected conflict retries to succeed, got %v", err)
	}
	if repo.swaps != 3 {
		t.Fatalf("expected 3 swap attempts, got %d", repo.swaps)
	}
}

func TestMerger_SurfacesConflictAfterRetryBudget(t *testing.T) {
	repo := &conflictRepo{MemoryRepository: cataloginfra.NewMemory(), conflicts: 100}
	merger := catalogsrv.NewMerger(repo)
	product := newProduct(t, repo)
	ctx := context.Background()

	asset := catalog.NewMediaAsset("https://media.test/products/x.jpg", catalog.VariantMobile, false)
	if err := merger.AppendAsset(ctx, product.ID, catalog.RoleImage, asset); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := merger.SetDefaultImage(ctx, product.ID, asset.ID, true)
	if !catalog.IsMergeConflict(err) {
		t.Fatalf("expected merge conflict, got %v", err)
	}
	if repo.swaps != 3 {
		t.Fatalf("expected 3 bounded rewrite attempts, got %d swaps", repo.swaps)
	}
}
