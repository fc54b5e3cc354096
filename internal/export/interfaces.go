package export

import (
	"context"
	"io"
)

// ObjectStore writes and reads summary exports in cloud storage.
type ObjectStore interface {
	// Upload streams r to bucket/object and returns the gs:// URI.
	Upload(ctx context.Context, bucket, object string, r io.Reader) (string, error)

	// Fetch downloads the object behind a gs:// URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
}
