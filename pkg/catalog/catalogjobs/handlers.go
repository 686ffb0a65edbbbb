package catalogjobs

import (
	"context"
	"encoding/json"

	"github.com/Pikiko14/motowork-products/pkg/catalog"
	"github.com/Pikiko14/motowork-products/pkg/catalog/contapyme"
	"github.com/Pikiko14/motowork-products/pkg/fsx"
	"github.com/Pikiko14/motowork-products/pkg/jobx"
	"github.com/Pikiko14/motowork-products/pkg/logx"
	"github.com/Pikiko14/motowork-products/pkg/mediastore"
	"github.com/Pikiko14/motowork-products/pkg/ptrx"
)

// MediaMerger attaches uploaded assets to a product document under the
// merge policy. Satisfied by catalogsrv.Merger.
type MediaMerger interface {
	AppendAsset(ctx context.Context, productID string, role catalog.MediaRole, asset catalog.MediaAsset) error
}

// CatalogSource answers external catalog lookups. Satisfied by
// contapyme.Client.
type CatalogSource interface {
	GetProduct(ctx context.Context, sku string) (*contapyme.ProductInfo, error)
	GetImageURL(ctx context.Context, sku string) (string, error)
}

// Handlers processes the media and sync jobs.
type Handlers struct {
	repo    catalog.ProductRepository
	merger  MediaMerger
	media   mediastore.MediaStore
	staging fsx.FileSystem
	source  CatalogSource
}

// NewHandlers wires the job handlers.
func NewHandlers(repo catalog.ProductRepository, merger MediaMerger, media mediastore.MediaStore, staging fsx.FileSystem, source CatalogSource) *Handlers {
	return &Handlers{
		repo:    repo,
		merger:  merger,
		media:   media,
		staging: staging,
		source:  source,
	}
}

// RegisterMedia attaches the three file job handlers to the media queue.
func (h *Handlers) RegisterMedia(client *jobx.Client) {
	client.Register(TypeUploadSingle, h.HandleUploadSingle)
	client.Register(TypeUploadBatch, h.HandleUploadBatch)
	client.Register(TypeDeleteRemote, h.HandleDeleteRemote)
}

// RegisterSync attaches the catalog sync handler. The sync queue runs with
// concurrency 1 so external catalog writes stay serialized.
func (h *Handlers) RegisterSync(client *jobx.Client) {
	client.Register(TypeCatalogSync, h.HandleCatalogSync)
}

// HandleUploadSingle uploads one staged file and appends the resulting
// asset to the product. The staged copy is removed only after the product
// references the upload, so a retry always finds its input.
func (h *Handlers) HandleUploadSingle(ctx context.Context, job *jobx.JobInfo) error {
	var p UploadSinglePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}

	data, err := h.staging.ReadFile(ctx, p.StagingPath)
	if err != nil {
		return err
	}

	res, err := h.media.Upload(ctx, data, p.Folder)
	if err != nil {
		return err
	}

	asset := catalog.NewMediaAsset(res.SecureURL, p.Variant, p.IsDefault)
	if err := h.merger.AppendAsset(ctx, p.ProductID, p.Role, asset); err != nil {
		return err
	}

	h.cleanupStaged(ctx, p.StagingPath)
	return nil
}

// HandleUploadBatch uploads the staged files in order, appending each asset
// as soon as its upload lands. Progress is written back into the job
// payload, so a failed batch retries from the first item that has not been
// uploaded yet instead of re-uploading everything.
func (h *Handlers) HandleUploadBatch(ctx context.Context, job *jobx.JobInfo) error {
	var p UploadBatchPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}

	for i := range p.Items {
		item := &p.Items[i]
		if item.Uploaded {
			continue
		}

		data, err := h.staging.ReadFile(ctx, item.StagingPath)
		if err != nil {
			h.saveProgress(job, p)
			return err
		}

		res, err := h.media.Upload(ctx, data, p.Folder)
		if err != nil {
			h.saveProgress(job, p)
			return err
		}

		asset := catalog.NewMediaAsset(res.SecureURL, item.Variant, false)
		if err := h.merger.AppendAsset(ctx, p.ProductID, p.Role, asset); err != nil {
			h.saveProgress(job, p)
			return err
		}

		item.Uploaded = true
		item.URL = res.SecureURL
		h.saveProgress(job, p)
		h.cleanupStaged(ctx, item.StagingPath)
	}

	return nil
}

// HandleDeleteRemote removes one object from the media store. Unknown and
// already-deleted URLs complete without error.
func (h *Handlers) HandleDeleteRemote(ctx context.Context, job *jobx.JobInfo) error {
	var p DeleteRemotePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}

	found, err := h.media.DeleteByURL(ctx, p.URL)
	if err != nil {
		return err
	}
	if !found {
		logx.Infof("catalogjobs: remote object already gone: %s", p.URL)
	}
	return nil
}

// HandleCatalogSync synchronizes one seed against the external catalog:
// price from the published price list, and when the catalog reports images,
// exactly one desktop and one mobile asset on the same URL. An unknown sku
// creates the product; a known one gets price and images overwritten.
func (h *Handlers) HandleCatalogSync(ctx context.Context, job *jobx.JobInfo) error {
	var p CatalogSyncPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return err
	}

	seed := p.Product
	if seed.SKU == "" {
		logx.Warnf("catalogjobs: sync job %s carries no sku, skipping", job.ID)
		return nil
	}

	info, err := h.source.GetProduct(ctx, seed.SKU)
	if err != nil {
		return err
	}

	var images catalog.MediaAssetList
	if info.ImageCount > 0 {
		url, err := h.source.GetImageURL(ctx, seed.SKU)
		if err != nil {
			return err
		}
		images = catalog.MediaAssetList{
			catalog.NewMediaAsset(url, catalog.VariantDesktop, false),
			catalog.NewMediaAsset(url, catalog.VariantMobile, false),
		}
	}

	// The catalog's published price wins; a seed carrying its own price
	// keeps it when the catalog publishes none.
	price := info.Price
	if price == nil {
		price = seed.Price
	}

	existing, err := h.repo.FindBySKU(ctx, seed.SKU)
	if err != nil {
		return err
	}

	if existing == nil {
		product := &catalog.Product{
			Name:        seed.Name,
			Model:       seed.Model,
			Brand:       seed.Brand,
			Category:    seed.Category,
			SKU:         seed.SKU,
			State:       seed.State,
			Type:        seed.Type,
			Description: seed.Description,
			Discount:    seed.Discount,
			Active:      seed.Active,
			Price:       ptrx.Value(price),
			Images:      images,
		}
		_, err := h.repo.Create(ctx, product)
		return err
	}

	// Re-running an unchanged sync leaves the product as it is.
	if sameAssets(existing.Images, images) && (price == nil || existing.Price == *price) {
		return nil
	}
	return h.repo.ReplaceImagesAndPrice(ctx, existing.ID, images, price)
}

// saveProgress writes the batch payload back into the job record, so the
// broker persists per-item progress when the attempt fails.
func (h *Handlers) saveProgress(job *jobx.JobInfo, p UploadBatchPayload) {
	raw, err := json.Marshal(p)
	if err != nil {
		logx.WithError(err).Errorf("catalogjobs: could not persist batch progress for job %s", job.ID)
		return
	}
	job.Payload = raw
}

func (h *Handlers) cleanupStaged(ctx context.Context, path string) {
	if err := h.staging.DeleteFile(ctx, path); err != nil {
		logx.WithError(err).Warnf("catalogjobs: staged file %s not cleaned up", path)
	}
}

// sameAssets compares collections by URL and variant, ignoring generated
// ids and flags.
func sameAssets(a, b catalog.MediaAssetList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].URL != b[i].URL || a[i].Variant != b[i].Variant {
			return false
		}
	}
	return true
}
