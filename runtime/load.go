package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/registry"
)

// Load fetches, instantiates, registers and initializes a guest and
// returns its handle. The guest starts inactive.
//
// Load blocks until the control loop has run init, so the loop must be
// running (Serve or Run) and Load must not be called from the loop itself.
func (r *Runtime) Load(ctx context.Context, source, target string) (h registry.Handle, err error) {
	defer func() { r.metrics.ObserveLoad(err) }()

	if r.loop.OnLoop(ctx) {
		return 0, errors.Load(source, errors.InvalidInput(errors.PhaseLoad, "Load called from the control loop"))
	}

	image, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, errors.Load("fetch "+source, err)
	}
	image, err = decodeImage(image, r.cfg.Resource.MaxBytes)
	if err != nil {
		return 0, errors.Load("decompress "+source, err)
	}

	err = r.loop.Call(ctx, func(ctx context.Context) error {
		var ierr error
		h, ierr = r.install(ctx, source, target, image)
		return ierr
	})
	if err != nil {
		if !errors.Is(err, errors.ErrLoad) {
			err = errors.Load(source, err)
		}
		r.logger.Error("guest load failed", zap.String("source", source), zap.Error(err))
		return 0, err
	}
	return h, nil
}

// install runs on the control goroutine.
func (r *Runtime) install(ctx context.Context, source, target string, image []byte) (registry.Handle, error) {
	name := "guest-" + uuid.NewString()

	exports, err := r.engine.Instantiate(ctx, name, image)
	if err != nil {
		return 0, errors.Load("instantiate "+source, err)
	}

	if err := r.surface.Mount(ctx, name, target); err != nil {
		_ = exports.Close(ctx)
		return 0, errors.Load("mount "+target, err)
	}

	inst := &Instance{
		exports: exports,
		limiter: rate.NewLimiter(rate.Limit(r.cfg.Guest.LogRate), r.cfg.Guest.LogBurst),
		loaded:  time.Now(),
		name:    name,
		source:  source,
		target:  target,
	}
	h, err := r.table.TryInsert(inst)
	if err != nil {
		_ = exports.Close(ctx)
		return 0, errors.Load("register "+source, err)
	}
	inst.handle = h

	if _, err := exports.Call(withHandle(ctx, h), framehost.ExportInit, uint64(h)); err != nil {
		_, _ = r.table.Remove(h)
		_ = exports.Close(ctx)
		return 0, errors.Load("init "+source, err)
	}

	r.logger.Info("guest loaded",
		zap.Uint32("handle", uint32(h)),
		zap.String("source", source),
		zap.String("module", name),
		zap.Bool("active", inst.active))
	return h, nil
}

// Unload closes and unregisters a guest. Reads still in flight for it are
// completed as failures against the missing handle and dropped.
func (r *Runtime) Unload(ctx context.Context, h registry.Handle) error {
	return r.loop.Call(ctx, func(ctx context.Context) error {
		inst, err := r.table.Remove(h)
		if err != nil {
			return err
		}
		r.logger.Info("guest unloaded", zap.Uint32("handle", uint32(h)), zap.String("source", inst.source))
		return inst.exports.Close(ctx)
	})
}
