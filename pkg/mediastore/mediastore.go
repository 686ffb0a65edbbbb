// Package mediastore is the capability over the remote media store: upload
// bytes into a folder, delete an object by its public URL. The product
// subsystem only ever sees this interface.
package mediastore

import (
	"context"

	"github.com/Pikiko14/motowork-products/pkg/errx"
)

var mediaErrors = errx.NewRegistry("MEDIA")

var (
	ErrUploadFailed = mediaErrors.Register("UPLOAD_FAILED", errx.TypeExternal, 502, "Media store rejected the upload")
	ErrDeleteFailed = mediaErrors.Register("DELETE_FAILED", errx.TypeExternal, 502, "Media store delete failed")
	ErrEmptyFile    = mediaErrors.Register("EMPTY_FILE", errx.TypeValidation, 400, "Refusing to upload an empty file")
)

// UploadResult is the remote store's answer to a successful upload.
type UploadResult struct {
	// SecureURL is the public HTTPS URL of the stored object.
	SecureURL string
}

// Uploader pushes binary content to the remote store.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder string) (*UploadResult, error)
}

// Deleter removes remote objects by URL. Deleting an unknown or already
// deleted URL reports found=false with a nil error: remote deletes are
// idempotent.
type Deleter interface {
	DeleteByURL(ctx context.Context, url string) (found bool, err error)
}

// MediaStore combines upload and delete.
type MediaStore interface {
	Uploader
	Deleter
}

// NewUploadError wraps a provider failure as an upload error.
func NewUploadError(cause error) *errx.Error {
	return mediaErrors.NewWithCause(ErrUploadFailed, cause)
}

// NewDeleteError wraps a provider failure as a delete error.
func NewDeleteError(cause error) *errx.Error {
	return mediaErrors.NewWithCause(ErrDeleteFailed, cause)
}

// NewEmptyFileError reports a zero-length upload attempt.
func NewEmptyFileError() *errx.Error {
	return mediaErrors.New(ErrEmptyFile)
}
