package resource

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/scheduler"
	"github.com/wippyai/framehost/transport"
)

// Region is a destination range in guest memory.
type Region struct {
	Ptr uint32
	Len uint32
}

// PendingRead is a read in flight.
type PendingRead struct {
	Started  time.Time
	Name     string
	Location string
	ID       uint64
	Dest     Region
	Handle   registry.Handle
}

// Poster marshals work onto the control goroutine.
type Poster interface {
	Post(t scheduler.Task)
}

// Writer copies bytes into a guest's memory.
type Writer interface {
	Write(h registry.Handle, ptr uint32, data []byte) error
}

// Completer resumes a guest after its read settled.
type Completer interface {
	Complete(ctx context.Context, h registry.Handle, ok bool) error
}

// Config wires a Bridge.
type Config struct {
	Fetcher   transport.Fetcher
	Poster    Poster
	Memory    Writer
	Completer Completer
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Base is the location resource names are resolved against.
	Base string
}

// Bridge runs guest resource reads.
type Bridge struct {
	cfg     Config
	logger  *zap.Logger
	pending map[uint64]*PendingRead
	wg      sync.WaitGroup
	nextID  atomic.Uint64
	mu      sync.Mutex
}

// NewBridge creates a bridge.
func NewBridge(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[uint64]*PendingRead),
	}
}

// Request starts reading name into dest for guest h. It returns at once;
// the outcome is delivered through the Completer on the control goroutine.
// A name that cannot be resolved is failed the same way and its error is
// also returned.
func (b *Bridge) Request(ctx context.Context, h registry.Handle, name string, dest Region) (*PendingRead, error) {
	location, err := transport.Resolve(b.cfg.Base, name)
	if err != nil {
		b.Fail(h, name, err)
		return nil, err
	}

	pr := &PendingRead{
		ID:       b.nextID.Add(1),
		Handle:   h,
		Dest:     dest,
		Name:     name,
		Location: location,
		Started:  time.Now(),
	}
	b.mu.Lock()
	b.pending[pr.ID] = pr
	b.mu.Unlock()
	b.cfg.Metrics.ReadStarted()

	b.logger.Debug("read started",
		zap.Uint64("id", pr.ID),
		zap.Uint32("handle", uint32(h)),
		zap.String("location", location),
		zap.Uint32("dest_ptr", dest.Ptr),
		zap.Uint32("dest_len", dest.Len))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		data, ferr := b.cfg.Fetcher.Fetch(ctx, location)
		b.cfg.Poster.Post(func(ctx context.Context) {
			_ = b.settle(ctx, pr, data, ferr)
		})
	}()
	return pr, nil
}

// Fail completes a request that could not be started with
// readFileComplete(false). Completion is posted, never run inline, so the
// guest is not re-entered from inside its own readFile call.
func (b *Bridge) Fail(h registry.Handle, name string, cause error) {
	b.cfg.Metrics.ReadStarted()
	b.cfg.Poster.Post(func(ctx context.Context) {
		b.logger.Warn("read rejected",
			zap.Uint32("handle", uint32(h)),
			zap.String("name", name),
			zap.Error(cause))
		b.cfg.Metrics.ReadSettled(metrics.ReadRejected, 0)
		b.complete(ctx, h, false)
	})
}

// settle runs on the control goroutine. It returns the failure reported to
// the guest, if any.
func (b *Bridge) settle(ctx context.Context, pr *PendingRead, data []byte, ferr error) error {
	b.mu.Lock()
	delete(b.pending, pr.ID)
	b.mu.Unlock()

	fields := []zap.Field{
		zap.Uint64("id", pr.ID),
		zap.Uint32("handle", uint32(pr.Handle)),
		zap.String("location", pr.Location),
		zap.Duration("elapsed", time.Since(pr.Started)),
	}

	if ferr != nil {
		b.logger.Warn("read failed", append(fields, zap.Error(ferr))...)
		b.cfg.Metrics.ReadSettled(metrics.ReadFailed, 0)
		b.complete(ctx, pr.Handle, false)
		return ferr
	}

	n := uint64(len(data))
	if n > uint64(pr.Dest.Len) {
		err := errors.BufferOverflow(errors.PhaseResource, uint32(min(n, uint64(^uint32(0)))), pr.Dest.Len)
		b.logger.Warn("read overflow", append(fields, zap.Error(err))...)
		b.cfg.Metrics.ReadSettled(metrics.ReadOverflow, 0)
		b.complete(ctx, pr.Handle, false)
		return err
	}

	if err := b.cfg.Memory.Write(pr.Handle, pr.Dest.Ptr, data); err != nil {
		b.logger.Warn("read copy failed", append(fields, zap.Error(err))...)
		b.cfg.Metrics.ReadSettled(metrics.ReadFailed, 0)
		b.complete(ctx, pr.Handle, false)
		return err
	}

	b.logger.Debug("read complete", append(fields, zap.Int("bytes", len(data)))...)
	b.cfg.Metrics.ReadSettled(metrics.ReadOK, len(data))
	b.complete(ctx, pr.Handle, true)
	return nil
}

func (b *Bridge) complete(ctx context.Context, h registry.Handle, ok bool) {
	if err := b.cfg.Completer.Complete(ctx, h, ok); err != nil {
		b.logger.Warn("readFileComplete failed",
			zap.Uint32("handle", uint32(h)),
			zap.Bool("success", ok),
			zap.Error(err))
	}
}

// Pending returns the reads in flight ordered by ID.
func (b *Bridge) Pending() []PendingRead {
	b.mu.Lock()
	out := make([]PendingRead, 0, len(b.pending))
	for _, pr := range b.pending {
		out = append(out, *pr)
	}
	b.mu.Unlock()

	slices.SortFunc(out, func(a, c PendingRead) int { return cmp.Compare(a.ID, c.ID) })
	return out
}

// Wait blocks until every fetch goroutine has posted its settlement.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
