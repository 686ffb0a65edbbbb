package catalog

import "context"

// ScalarPatch carries the plain-field updates of a product. Nil fields
// are left untouched.
type ScalarPatch struct {
	Name        *string
	Model       *string
	Brand       *string
	Category    *string
	State       *string
	Type        *string
	Description *string
	Price       *float64
	Discount    *float64
	Active      *bool
}

// ProductRepository is the persistence port for products.
//
// Media collections are updated through two distinct paths. AppendMediaAsset
// is a server-side array concat that commutes with concurrent appends, so
// plain additions never clobber each other. SwapMediaCollection rewrites a
// whole collection and is guarded by the collection value the caller read;
// when the stored collection no longer matches, even at the same length,
// the swap fails with a merge conflict instead of silently overwriting a
// concurrent change.
type ProductRepository interface {
	// FindByID returns the product, or (nil, nil) when it does not exist.
	FindByID(ctx context.Context, id string) (*Product, error)

	// FindBySKU returns the product with the given sku, or (nil, nil).
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// Create persists a new product. A missing id is assigned.
	Create(ctx context.Context, product *Product) (*Product, error)

	// UpdateScalars applies the non-nil fields of the patch.
	UpdateScalars(ctx context.Context, id string, patch ScalarPatch) error

	// AppendMediaAsset atomically appends one asset to the role's
	// collection.
	AppendMediaAsset(ctx context.Context, id string, role MediaRole, asset MediaAsset) error

	// SwapMediaCollection replaces the role's collection, but only when the
	// stored collection still equals expected. Fails with ErrMergeConflict
	// otherwise.
	SwapMediaCollection(ctx context.Context, id string, role MediaRole, assets MediaAssetList, expected MediaAssetList) error

	// ReplaceImagesAndPrice overwrites the image collection and price in
	// one statement. A nil price keeps the stored one. Used by catalog
	// sync, which owns the whole image set it writes.
	ReplaceImagesAndPrice(ctx context.Context, id string, images MediaAssetList, price *float64) error
}
