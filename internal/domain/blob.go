package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves aged snapshot rows from the database to cold storage.
type Archiver interface {
	// ArchiveSnapshots uploads all snapshots scanned before the cutoff and
	// deletes them from the primary store once the upload succeeds. It
	// returns the number of archived snapshot rows.
	ArchiveSnapshots(ctx context.Context, before time.Time) (int64, error)
}
