// Package fsx is the capability over the local staging area where multipart
// uploads wait until a worker pushes them to the media store.
package fsx

import "context"

// FileReader provides read access to staged files.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter stages new files.
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

// FileDeleter removes staged files once they are no longer needed.
type FileDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// FileSystem combines the staging operations.
type FileSystem interface {
	FileReader
	FileWriter
	FileDeleter

	// Join builds a provider-appropriate path from elements.
	Join(elem ...string) string
}
