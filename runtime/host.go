package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/resource"
)

// caller resolves the guest making an import call.
func (r *Runtime) caller(ctx context.Context, name string) (*Instance, bool) {
	h, ok := HandleFromContext(ctx)
	if !ok {
		r.logger.Warn("import called outside a guest call", zap.String("import", name))
		return nil, false
	}
	inst, err := r.table.Get(h)
	if err != nil {
		r.logger.Warn("import called by unregistered guest",
			zap.String("import", name), zap.Uint32("handle", uint32(h)))
		return nil, false
	}
	return inst, true
}

// LogConsole writes a guest message to the guest logger.
func (r *Runtime) LogConsole(ctx context.Context, ptr, length uint32) {
	inst, ok := r.caller(ctx, framehost.ImportLogConsole)
	if !ok {
		return
	}
	if !inst.limiter.Allow() {
		r.metrics.GuestLog(true)
		return
	}

	msg, err := r.memory.Text(inst.handle, ptr, length)
	if err != nil {
		r.logger.Warn("logConsole: unreadable message",
			zap.Uint32("handle", uint32(inst.handle)), zap.Error(err))
		return
	}
	r.metrics.GuestLog(false)
	r.guestLog.Info(msg,
		zap.Uint32("handle", uint32(inst.handle)),
		zap.String("source", inst.source))
}

// ReadFile starts an asynchronous resource read for the calling guest.
func (r *Runtime) ReadFile(ctx context.Context, namePtr, nameLen, destPtr, destLen uint32) {
	inst, ok := r.caller(ctx, framehost.ImportReadFile)
	if !ok {
		return
	}

	name, err := r.memory.Text(inst.handle, namePtr, nameLen)
	if err != nil {
		r.reads.Fail(inst.handle, "", err)
		return
	}
	// Rejected names are failed and logged by the bridge.
	_, _ = r.reads.Request(ctx, inst.handle, name, resource.Region{Ptr: destPtr, Len: destLen})
}

// SetCanUpdate switches per-frame updates for the calling guest.
func (r *Runtime) SetCanUpdate(ctx context.Context, enabled bool) {
	inst, ok := r.caller(ctx, framehost.ImportSetCanUpdate)
	if !ok {
		return
	}
	if inst.active != enabled {
		r.logger.Debug("guest activation changed",
			zap.Uint32("handle", uint32(inst.handle)), zap.Bool("active", enabled))
	}
	inst.active = enabled
}

// Complete calls the guest's readFileComplete export.
func (r *Runtime) Complete(ctx context.Context, h registry.Handle, ok bool) error {
	inst, err := r.table.Get(h)
	if err != nil {
		return err
	}
	var flag uint64
	if ok {
		flag = 1
	}
	_, err = inst.exports.Call(withHandle(ctx, h), framehost.ExportReadFileComplete, flag)
	return err
}
