// Package catalogjobs defines the media and sync job types, their payloads
// and the worker handlers that process them.
package catalogjobs

import "github.com/Pikiko14/motowork-products/pkg/catalog"

// Job types routed by the queue clients. The media queue carries the three
// file jobs; the catalog sync queue carries loadProductsData alone.
const (
	TypeUploadSingle = "uploadFile"
	TypeUploadBatch  = "uploadMultipleFiles"
	TypeDeleteRemote = "deleteFile"
	TypeCatalogSync  = "loadProductsData"
)

// UploadSinglePayload uploads one staged file and appends it to a product
// media collection.
type UploadSinglePayload struct {
	ProductID   string            `json:"product_id"`
	StagingPath string            `json:"staging_path"`
	Folder      string            `json:"folder"`
	Role        catalog.MediaRole `json:"role"`
	Variant     catalog.Variant   `json:"variant"`
	IsDefault   bool              `json:"is_default"`
}

// BatchItem is one staged file of a batch upload. Uploaded and URL persist
// per-item progress across retries, so a retried batch resumes after the
// last item that made it.
type BatchItem struct {
	StagingPath string          `json:"staging_path"`
	Variant     catalog.Variant `json:"variant"`
	Uploaded    bool            `json:"uploaded"`
	URL         string          `json:"url,omitempty"`
}

// UploadBatchPayload uploads a set of staged files sequentially and appends
// each to the product's image collection.
type UploadBatchPayload struct {
	ProductID string            `json:"product_id"`
	Folder    string            `json:"folder"`
	Role      catalog.MediaRole `json:"role"`
	Items     []BatchItem       `json:"items"`
}

// DeleteRemotePayload removes one object from the remote media store.
type DeleteRemotePayload struct {
	URL    string `json:"url"`
	Folder string `json:"folder"`
}

// ProductSeed is the catalog data an import carries for one product. The
// sync handler enriches it with price and images from the external catalog
// before creating or overwriting the stored product. A seed price is the
// fallback for skus whose catalog entry publishes no price.
type ProductSeed struct {
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	SKU         string   `json:"sku"`
	State       string   `json:"state"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Price       *float64 `json:"price,omitempty"`
	Discount    float64  `json:"discount"`
	Active      bool     `json:"active"`
}

// CatalogSyncPayload synchronizes one product against the external catalog.
type CatalogSyncPayload struct {
	Product ProductSeed `json:"product"`
}
