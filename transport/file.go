package transport

import (
	"context"
	"os"

	"github.com/wippyai/framehost/errors"
)

// File reads locations from the local filesystem.
type File struct {
	// MaxBytes caps the size of a single read. 0 means unlimited.
	MaxBytes int64
}

func (f *File) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Fetch(location, err)
	}
	fh, err := os.Open(location)
	if err != nil {
		return nil, errors.Fetch(location, err)
	}
	defer fh.Close()

	data, err := readLimited(fh, f.MaxBytes)
	if err != nil {
		return nil, errors.Fetch(location, err)
	}
	return data, nil
}
