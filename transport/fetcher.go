package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/wippyai/framehost/errors"
)

// Fetcher retrieves the full contents of a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// Mux dispatches by scheme: http and https go to Remote, file URLs and plain
// paths go to Local.
type Mux struct {
	Local  Fetcher
	Remote Fetcher
}

func (m *Mux) Fetch(ctx context.Context, location string) ([]byte, error) {
	switch scheme(location) {
	case "http", "https":
		if m.Remote == nil {
			return nil, errors.Fetch(location, fmt.Errorf("remote fetching disabled"))
		}
		return m.Remote.Fetch(ctx, location)
	case "file":
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.Fetch(location, err)
		}
		return m.local(ctx, filepath.FromSlash(u.Path))
	case "":
		return m.local(ctx, location)
	default:
		return nil, errors.Fetch(location, fmt.Errorf("unsupported scheme %q", scheme(location)))
	}
}

func (m *Mux) local(ctx context.Context, p string) ([]byte, error) {
	if m.Local == nil {
		return nil, errors.Fetch(p, fmt.Errorf("local fetching disabled"))
	}
	return m.Local.Fetch(ctx, p)
}

// scheme returns the lower-cased URL scheme of location, or "" for paths.
// Single-letter schemes are treated as Windows drive letters.
func scheme(location string) string {
	i := strings.Index(location, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(location[:i])
}

// Resolve joins a guest-supplied resource name onto base. Names must be
// relative and stay inside base; absolute names, names containing "..",
// and empty names are rejected. An empty base resolves against the working
// directory.
func Resolve(base, name string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(name)) || strings.Contains(name, "\\") {
		return "", errors.InvalidInput(errors.PhaseResource, fmt.Sprintf("resource name %q is not a local path", name))
	}

	switch scheme(base) {
	case "":
		if base == "" {
			return filepath.FromSlash(name), nil
		}
		return filepath.Join(base, filepath.FromSlash(name)), nil
	default:
		u, err := url.Parse(base)
		if err != nil {
			return "", errors.InvalidInput(errors.PhaseResource, fmt.Sprintf("invalid base %q: %v", base, err))
		}
		u.Path = path.Join("/", u.Path, name)
		return u.String(), nil
	}
}

// readLimited reads r fully, failing when more than max bytes are
// available. max of 0 disables the limit.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("content exceeds %d bytes", max)
	}
	return data, nil
}
