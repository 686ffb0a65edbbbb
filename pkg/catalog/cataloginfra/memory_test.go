package cataloginfra_test

import (
	"context"
	"testing"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/cataloginfra"
)

func TestSwapMediaCollectionGuardsOnStoredValue(t *testing.T) {
	ctx := context.Background()
	repo := cataloginfra.NewMemory()

	product, err := repo.Create(ctx, &catalog.Product{Name: "CB 190R"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	a := catalog.NewMediaAsset("https://media.test/products/a.jpg", catalog.VariantMobile, false)
	if err := repo.AppendMediaAsset(ctx, product.ID, catalog.RoleImage, a); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A swap based on a stale read loses to the append above.
	err = repo.SwapMediaCollection(ctx, product.ID, catalog.RoleImage, catalog.MediaAssetList{}, catalog.MediaAssetList{})
	if !catalog.IsMergeConflict(err) {
		t.Fatalf("expected merge conflict, got %v", err)
	}

	// Guarded with the stored value the swap goes through.
	if err := repo.SwapMediaCollection(ctx, product.ID, catalog.RoleImage, catalog.MediaAssetList{}, catalog.MediaAssetList{a}); err != nil {
		t.Fatalf("swap: %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Images) != 0 {
		t.Fatalf("expected empty collection, got %+v", got.Images)
	}
}

func TestSwapMediaCollectionRejectsStaleGuardOfSameLength(t *testing.T) {
	ctx := context.Background()
	repo := cataloginfra.NewMemory()

	a := catalog.NewMediaAsset("https://media.test/products/a.jpg", catalog.VariantMobile, false)
	product, err := repo.Create(ctx, &catalog.Product{
		Name:   "CB 190R",
		Images: catalog.MediaAssetList{a},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b := catalog.NewMediaAsset("https://media.test/products/b.jpg", catalog.VariantMobile, false)
	if err := repo.SwapMediaCollection(ctx, product.ID, catalog.RoleImage, catalog.MediaAssetList{b}, catalog.MediaAssetList{a}); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// The stored collection still holds one entry, but its content moved
	// on. A rewrite guarded with the old value must conflict, not clobber.
	c := catalog.NewMediaAsset("https://media.test/products/c.jpg", catalog.VariantMobile, false)
	err = repo.SwapMediaCollection(ctx, product.ID, catalog.RoleImage, catalog.MediaAssetList{c}, catalog.MediaAssetList{a})
	if !catalog.IsMergeConflict(err) {
		t.Fatalf("expected merge conflict, got %v", err)
	}

	got, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Images) != 1 || got.Images[0].ID != b.ID {
		t.Fatalf("expected the first rewrite to survive, got %+v", got.Images)
	}
}

func TestFindBySKUMissingIsNil(t *testing.T) {
	repo := cataloginfra.NewMemory()
	got, err := repo.FindBySKU(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown sku, got %+v", got)
	}
}
