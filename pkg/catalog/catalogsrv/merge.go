// Package catalogsrv holds the product media service: staging plus enqueue
// on the write side, and the merge policy that keeps concurrent updates to
// one product document from clobbering each other.
package catalogsrv

import (
	"context"
	"sync"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
)

// maxConflictRetries bounds how often a collection rewrite re-reads after
// losing the guarded swap to a concurrent writer.
const maxConflictRetries = 3

// Merger applies media updates to a product document. Plain appends go
// through the repository's commutative append and need no coordination.
// Collection rewrites (remove, default flip, default-append) serialize
// in-process on a per-product lock and are guarded by the collection
// value that was read, so any concurrent write between read and write
// surfaces as a merge conflict and triggers a re-read instead of a lost
// update.
type Merger struct {
	repo catalog.ProductRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMerger creates a merger over the product repository.
func NewMerger(repo catalog.ProductRepository) *Merger {
	return &Merger{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Merger) lockFor(productID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[productID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[productID] = l
	}
	return l
}

// AppendAsset attaches a freshly uploaded asset to the product. Non-default
// assets commute with concurrent appends and use the atomic path. A default
// asset must unset the previous default of its variant, which is a
// collection rewrite.
func (m *Merger) AppendAsset(ctx context.Context, productID string, role catalog.MediaRole, asset catalog.MediaAsset) error {
	if !role.Valid() {
		return catalog.NewInvalidRole(role)
	}
	if !asset.Variant.Valid() {
		return catalog.NewInvalidVariant(asset.Variant)
	}

	if !asset.IsDefault {
		return m.repo.AppendMediaAsset(ctx, productID, role, asset)
	}

	return m.rewrite(ctx, productID, role, func(current catalog.MediaAssetList) (catalog.MediaAssetList, error) {
		next := current.Clone()
		for i := range next {
			if next[i].Variant == asset.Variant {
				next[i].IsDefault = false
			}
		}
		return append(next, asset), nil
	})
}

// RemoveImage takes the asset out of the collection and returns its URL so
// the caller can schedule the remote delete.
func (m *Merger) RemoveImage(ctx context.Context, productID string, role catalog.MediaRole, imageID string) (string, error) {
	if !role.Valid() {
		return "", catalog.NewInvalidRole(role)
	}

	var removedURL string
	err := m.rewrite(ctx, productID, role, func(current catalog.MediaAssetList) (catalog.MediaAssetList, error) {
		idx := current.Find(imageID)
		if idx < 0 {
			return nil, catalog.NewImageNotFound(productID, imageID)
		}
		removedURL = current[idx].URL

		next := make(catalog.MediaAssetList, 0, len(current)-1)
		next = append(next, current[:idx]...)
		next = append(next, current[idx+1:]...)
		return next, nil
	})
	if err != nil {
		return "", err
	}
	return removedURL, nil
}

// SetDefaultImage flips the default flag of one image. Setting it unsets
// every other default of the same variant, so at most one default per
// variant survives any sequence of flips.
func (m *Merger) SetDefaultImage(ctx context.Context, productID, imageID string, isDefault bool) error {
	return m.rewrite(ctx, productID, catalog.RoleImage, func(current catalog.MediaAssetList) (catalog.MediaAssetList, error) {
		idx := current.Find(imageID)
		if idx < 0 {
			return nil, catalog.NewImageNotFound(productID, imageID)
		}

		next := current.Clone()
		if isDefault {
			for i := range next {
				if next[i].Variant == next[idx].Variant {
					next[i].IsDefault = false
				}
			}
		}
		next[idx].IsDefault = isDefault
		return next, nil
	})
}

// rewrite runs a read-modify-swap cycle under the product's lock, retrying
// on merge conflicts up to the retry bound. The transform sees the freshly
// read collection on every attempt.
func (m *Merger) rewrite(ctx context.Context, productID string, role catalog.MediaRole, transform func(catalog.MediaAssetList) (catalog.MediaAssetList, error)) error {
	lock := m.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		product, err := m.repo.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return catalog.NewProductNotFound(productID)
		}

		current := product.Collection(role)
		next, err := transform(current)
		if err != nil {
			return err
		}

		err = m.repo.SwapMediaCollection(ctx, productID, role, next, current)
		if err == nil {
			return nil
		}
		if !catalog.IsMergeConflict(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
