package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/errors"
)

// exports adapts an instantiated wazero module to framehost.Exports.
type exports struct {
	mod api.Module
}

// Memory returns the exported memory, or nil if the guest exports none.
// The api.Memory is returned directly: its Read already re-slices the
// current buffer on every call.
func (x *exports) Memory() framehost.Memory {
	mem := x.mod.ExportedMemory(framehost.ExportMemory)
	if mem == nil {
		return nil
	}
	return mem
}

func (x *exports) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := x.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseHost, "export", name)
	}
	return fn.Call(ctx, params...)
}

func (x *exports) Close(ctx context.Context) error {
	return x.mod.Close(ctx)
}
