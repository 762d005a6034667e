package runtime

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/registry"
)

// Instance is a loaded guest. Its fields are owned by the control goroutine.
type Instance struct {
	exports framehost.Exports
	limiter *rate.Limiter
	loaded  time.Time
	name    string
	source  string
	target  string
	updates uint64
	traps   uint64
	handle  registry.Handle
	active  bool
}

// Exports returns the guest's exports.
func (i *Instance) Exports() framehost.Exports { return i.exports }

// Active reports whether the guest is updated every frame.
func (i *Instance) Active() bool { return i.active }

// Handle returns the guest's registry handle.
func (i *Instance) Handle() registry.Handle { return i.handle }

// Name returns the unique engine module name.
func (i *Instance) Name() string { return i.name }

// Source returns the image location the guest was loaded from.
func (i *Instance) Source() string { return i.source }

// Update calls the guest's update export.
func (i *Instance) Update(ctx context.Context) error {
	i.updates++
	if _, err := i.exports.Call(withHandle(ctx, i.handle), framehost.ExportUpdate); err != nil {
		i.traps++
		return err
	}
	return nil
}

type handleKey struct{}

func withHandle(ctx context.Context, h registry.Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// HandleFromContext returns the handle of the guest whose export call ctx
// belongs to.
func HandleFromContext(ctx context.Context) (registry.Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(registry.Handle)
	return h, ok
}
