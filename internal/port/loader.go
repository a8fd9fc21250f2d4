package port

import (
	"context"

	"sahayak/internal/domain"
)

// Loader extracts a document's raw text from a file on disk. The core
// pipeline never touches the filesystem itself; loaders feed it.
type Loader interface {
	// Load reads the file and returns a document with its raw text and
	// source filename set. The document ID is derived from content, so
	// loading identical content twice yields the same document.
	Load(ctx context.Context, path string) (domain.Document, error)

	// Supports reports whether the file extension is handled.
	Supports(path string) bool
}
