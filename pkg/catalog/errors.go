package catalog

import "github.com/Pikiko14/motowork-products/pkg/errx"

var catalogErrors = errx.NewRegistry("CATALOG")

var (
	ErrProductNotFound = catalogErrors.Register("PRODUCT_NOT_FOUND", errx.TypeNotFound, 404, "Product not found")
	ErrImageNotFound   = catalogErrors.Register("IMAGE_NOT_FOUND", errx.TypeNotFound, 404, "Image not found on product")
	ErrMergeConflict   = catalogErrors.Register("MERGE_CONFLICT", errx.TypeConflict, 409, "Product media changed concurrently")
	ErrInvalidRole     = catalogErrors.Register("INVALID_ROLE", errx.TypeValidation, 400, "Unknown media role")
	ErrInvalidVariant  = catalogErrors.Register("INVALID_VARIANT", errx.TypeValidation, 400, "Unknown media variant")
	ErrStoreFailed     = catalogErrors.Register("STORE_FAILED", errx.TypeInternal, 500, "Product store operation failed")
)

// NewProductNotFound reports a missing product.
func NewProductNotFound(id string) *errx.Error {
	return catalogErrors.New(ErrProductNotFound).WithDetail("product_id", id)
}

// NewImageNotFound reports a missing media asset on an existing product.
func NewImageNotFound(productID, imageID string) *errx.Error {
	return catalogErrors.New(ErrImageNotFound).
		WithDetail("product_id", productID).
		WithDetail("image_id", imageID)
}

// NewMergeConflict reports that a guarded collection swap lost the race.
func NewMergeConflict(productID string, role MediaRole) *errx.Error {
	return catalogErrors.New(ErrMergeConflict).
		WithDetail("product_id", productID).
		WithDetail("role", string(role))
}

// NewInvalidRole reports an unknown media role.
func NewInvalidRole(role MediaRole) *errx.Error {
	return catalogErrors.New(ErrInvalidRole).WithDetail("role", string(role))
}

// NewInvalidVariant reports an unknown media variant.
func NewInvalidVariant(variant Variant) *errx.Error {
	return catalogErrors.New(ErrInvalidVariant).WithDetail("variant", string(variant))
}

// NewStoreError wraps a backing-store failure.
func NewStoreError(cause error) *errx.Error {
	return catalogErrors.NewWithCause(ErrStoreFailed, cause)
}

// IsMergeConflict reports whether err is a lost collection swap.
func IsMergeConflict(err error) bool {
	return errx.IsCode(err, ErrMergeConflict)
}

// IsNotFound reports whether err is a missing product or image.
func IsNotFound(err error) bool {
	return errx.IsCode(err, ErrProductNotFound) || errx.IsCode(err, ErrImageNotFound)
}
