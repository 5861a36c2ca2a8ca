package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob: not found")

// Store holds the raw PDF bytes between admission and the worker. Handles are
// opaque strings assigned by the caller.
type Store interface {
	Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, handle string) (io.ReadCloser, error)

	// Delete is best-effort; callers log failures and move on.
	Delete(ctx context.Context, handle string) error
}
