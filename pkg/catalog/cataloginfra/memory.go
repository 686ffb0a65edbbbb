package cataloginfra

import (
	"context"
	"sync"
	"time"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/google/uuid"
)

// MemoryRepository implements catalog.ProductRepository in process memory
// with the same append and guarded-swap semantics as the Postgres
// implementation. It backs tests.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[string]*catalog.Product
}

// NewMemory creates an empty in-memory product repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{products: make(map[string]*catalog.Product)}
}

func cloneProduct(p *catalog.Product) *catalog.Product {
	out := *p
	out.Banner = p.Banner.Clone()
	out.Images = p.Images.Clone()
	return &out
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (r *MemoryRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.products {
		if p.SKU == sku {
			return cloneProduct(p), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Create(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Banner == nil {
		product.Banner = catalog.MediaAssetList{}
	}
	if product.Images == nil {
		product.Images = catalog.MediaAssetList{}
	}

	r.products[product.ID] = cloneProduct(product)
	return product, nil
}

func (r *MemoryRepository) UpdateScalars(ctx context.Context, id string, patch catalog.ScalarPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return catalog.NewProductNotFound(id)
	}

	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Model != nil {
		p.Model = *patch.Model
	}
	if patch.Brand != nil {
		p.Brand = *patch.Brand
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.State != nil {
		p.State = *patch.State
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) AppendMediaAsset(ctx context.Context, id string, role catalog.MediaRole, asset catalog.MediaAsset) error {
	if !role.Valid() {
		return catalog.NewInvalidRole(role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return catalog.NewProductNotFound(id)
	}

	if role == catalog.RoleBanner {
		p.Banner = append(p.Banner, asset)
	} else {
		p.Images = append(p.Images, asset)
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SwapMediaCollection(ctx context.Context, id string, role catalog.MediaRole, assets catalog.MediaAssetList, expected catalog.MediaAssetList) error {
	if !role.Valid() {
		return catalog.NewInvalidRole(role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return catalog.NewProductNotFound(id)
	}

	if !p.Collection(role).Equal(expected) {
		return catalog.NewMergeConflict(id, role)
	}

	if role == catalog.RoleBanner {
		p.Banner = assets.Clone()
	} else {
		p.Images = assets.Clone()
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) ReplaceImagesAndPrice(ctx context.Context, id string, images catalog.MediaAssetList, price *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return catalog.NewProductNotFound(id)
	}

	p.Images = images.Clone()
	if price != nil {
		p.Price = *price
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}
