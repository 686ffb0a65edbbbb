// Package catalog holds the product domain: the product document, its
// embedded media collections, and the repository port the rest of the
// system talks to.
package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Variant identifies the screen size an asset targets.
type Variant string

const (
	VariantMobile  Variant = "mobile"
	VariantDesktop Variant = "desktop"
)

// Valid reports whether the variant is one of the known values.
func (v Variant) Valid() bool {
	return v == VariantMobile || v == VariantDesktop
}

// MediaRole selects which media collection of a product an asset belongs
// to.
type MediaRole string

const (
	RoleBanner MediaRole = "banner"
	RoleImage  MediaRole = "image"
)

// Valid reports whether the role is one of the known values.
func (r MediaRole) Valid() bool {
	return r == RoleBanner || r == RoleImage
}

// MediaAsset is one entry of a product media collection.
type MediaAsset struct {
	ID        string  `json:"id"`
	URL       string  `json:"path"`
	Variant   Variant `json:"type"`
	IsDefault bool    `json:"is_default"`
}

// NewMediaAsset builds an asset with a fresh id.
func NewMediaAsset(url string, variant Variant, isDefault bool) MediaAsset {
	return MediaAsset{
		ID:        uuid.New().String(),
		URL:       url,
		Variant:   variant,
		IsDefault: isDefault,
	}
}

// MediaAssetList is a jsonb-backed media collection.
type MediaAssetList []MediaAsset

// Value marshals the collection for a jsonb column. An empty collection
// stores as [] rather than null so server-side appends always have an
// array to concatenate onto.
func (l MediaAssetList) Value() (driver.Value, error) {
	if l == nil {
		l = MediaAssetList{}
	}
	return json.Marshal(l)
}

// Scan unmarshals a jsonb column back into the collection.
func (l *MediaAssetList) Scan(src interface{}) error {
	if src == nil {
		*l = MediaAssetList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported media collection source %T", src)
	}
	return json.Unmarshal(b, l)
}

// Find returns the index of the asset with the given id, or -1.
func (l MediaAssetList) Find(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// DefaultFor returns the default asset for a variant, or nil when the
// variant has none.
func (l MediaAssetList) DefaultFor(variant Variant) *MediaAsset {
	for i := range l {
		if l[i].Variant == variant && l[i].IsDefault {
			return &l[i]
		}
	}
	return nil
}

// Clone returns an independent copy. Collection rewrites mutate the copy
// and swap it in whole.
func (l MediaAssetList) Clone() MediaAssetList {
	out := make(MediaAssetList, len(l))
	copy(out, l)
	return out
}

// Equal reports whether both collections hold the same assets in the same
// order.
func (l MediaAssetList) Equal(other MediaAssetList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// Product is the catalog document media jobs attach to.
type Product struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Model       string         `db:"model" json:"model"`
	Brand       string         `db:"brand" json:"brand"`
	Category    string         `db:"category" json:"category"`
	SKU         string         `db:"sku" json:"sku"`
	State       string         `db:"state" json:"state"`
	Type        string         `db:"type" json:"type"`
	Description string         `db:"description" json:"description"`
	Price       float64        `db:"price" json:"price"`
	Discount    float64        `db:"discount" json:"discount"`
	Active      bool           `db:"active" json:"active"`
	Banner      MediaAssetList `db:"banner" json:"banner"`
	Images      MediaAssetList `db:"images" json:"images"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Collection returns the media collection for a role. The returned slice
// is the product's own; callers that rewrite it must Clone first.
func (p *Product) Collection(role MediaRole) MediaAssetList {
	if role == RoleBanner {
		return p.Banner
	}
	return p.Images
}
