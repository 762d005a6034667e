package runtime

import "context"

// Surface attaches a guest to its presentation target before init runs.
type Surface interface {
	Mount(ctx context.Context, module, target string) error
}

// NopSurface accepts every target.
type NopSurface struct{}

func (NopSurface) Mount(context.Context, string, string) error { return nil }
