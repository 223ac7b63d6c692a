package internal

import (
	"context"
	"io"
)

// Repository is a destination for run artifacts. Keys are bare filenames; the
// repository decides where they land.
type Repository interface {
	Write(ctx context.Context, key string, reader io.Reader) error
	Flush() error
}
