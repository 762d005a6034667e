package runtime

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"
)

// Image is a guest to load at startup.
type Image struct {
	Source string
	Target string
}

// Run loads one guest and drives it until ctx is cancelled or the loop
// stops. It returns the load error if the guest fails to load.
func (r *Runtime) Run(ctx context.Context, imagePath, mountTarget string) error {
	return r.Serve(ctx, Image{Source: imagePath, Target: mountTarget})
}

// Serve runs the control loop and loads images in order, so handles follow
// the order given. If every image fails to load, the loop is stopped and
// the load errors are returned. Serve returns ctx.Err() when ctx is
// cancelled and nil when the loop is stopped or reaches its frame limit.
func (r *Runtime) Serve(ctx context.Context, images ...Image) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		loadErr error
	)
	if len(images) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var errs []error
			for _, img := range images {
				if _, err := r.Load(ctx, img.Source, img.Target); err != nil {
					errs = append(errs, err)
				}
			}
			if len(errs) == len(images) {
				loadErr = stderrors.Join(errs...)
				r.loop.Stop()
			}
		}()
	}

	r.logger.Info("loop starting", zap.Int("images", len(images)), zap.Int("frame_rate", r.cfg.Loop.FrameRate))
	err := r.loop.Run(ctx)
	cancel()
	wg.Wait()

	if loadErr != nil {
		return loadErr
	}
	return err
}
