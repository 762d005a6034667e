package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/framehost"
	"github.com/wippyai/framehost/config"
	"github.com/wippyai/framehost/engine"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/memview"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/resource"
	"github.com/wippyai/framehost/scheduler"
	"github.com/wippyai/framehost/transport"
)

// Engine instantiates guests against the env imports.
type Engine interface {
	Instantiate(ctx context.Context, name string, image []byte) (framehost.Exports, error)
	Register(g engine.ImportGroup) error
	Close(ctx context.Context) error
}

// EngineFactory builds an Engine bound to imp.
type EngineFactory func(ctx context.Context, imp engine.Imports) (Engine, error)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the host logger. Guest console output goes to its
// "guest" child.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithMetrics records host metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithFetcher replaces the file and HTTP fetcher used for images and resources.
func WithFetcher(f transport.Fetcher) Option {
	return func(r *Runtime) { r.fetcher = f }
}

// WithFrameSource replaces the frame ticker.
func WithFrameSource(fs scheduler.FrameSource) Option {
	return func(r *Runtime) { r.frames = fs }
}

// WithSurface sets the presentation surface guests are mounted on.
func WithSurface(s Surface) Option {
	return func(r *Runtime) { r.surface = s }
}

// WithEngine replaces the wazero engine.
func WithEngine(f EngineFactory) Option {
	return func(r *Runtime) { r.newEngine = f }
}

// Runtime hosts guests.
type Runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	guestLog  *zap.Logger
	metrics   *metrics.Metrics
	fetcher   transport.Fetcher
	frames    scheduler.FrameSource
	surface   Surface
	newEngine EngineFactory

	engine Engine
	table  *registry.Table[*Instance]
	memory *memview.Bridge
	loop   *scheduler.Loop
	sched  *scheduler.Scheduler[*Instance]
	reads  *resource.Bridge

	closeOnce sync.Once
	closeErr  error
}

// New creates a runtime. cfg may be nil for defaults.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.guestLog = r.logger.Named("guest")
	if r.fetcher == nil {
		r.fetcher = defaultFetcher(cfg, r.logger)
	}
	if r.frames == nil {
		r.frames = scheduler.Ticker(cfg.Loop.FrameRate)
	}
	if r.surface == nil {
		r.surface = NopSurface{}
	}
	if r.newEngine == nil {
		r.newEngine = wazeroEngine(cfg)
	}

	r.table = registry.NewTable[*Instance]()
	if r.metrics != nil {
		r.table.Subscribe(r.metrics)
	}
	r.memory = memview.New(memview.TableResolver(r.table), cfg.TextPolicy())
	r.sched = scheduler.NewScheduler(r.table, r.logger.Named("scheduler"), r.metrics)
	r.loop = scheduler.NewLoop(r.tick,
		scheduler.WithFrameSource(r.frames),
		scheduler.WithMaxFrames(cfg.Loop.MaxFrames),
		scheduler.WithLoopLogger(r.logger.Named("loop")))
	r.reads = resource.NewBridge(resource.Config{
		Fetcher:   r.fetcher,
		Poster:    r.loop,
		Memory:    r.memory,
		Completer: r,
		Logger:    r.logger.Named("resource"),
		Metrics:   r.metrics,
		Base:      cfg.Resource.Base,
	})

	eng, err := r.newEngine(ctx, r)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}
	r.engine = eng
	return r, nil
}

func wazeroEngine(cfg *config.Config) EngineFactory {
	return func(ctx context.Context, imp engine.Imports) (Engine, error) {
		return engine.NewWazeroEngine(ctx, engine.Config{
			CacheDir:         cfg.Engine.CacheDir,
			MemoryLimitPages: cfg.Engine.MemoryLimitPages,
		}, imp)
	}
}

func defaultFetcher(cfg *config.Config, logger *zap.Logger) transport.Fetcher {
	return &transport.Mux{
		Local: &transport.File{MaxBytes: cfg.Resource.MaxBytes},
		Remote: transport.NewHTTP(transport.HTTPConfig{
			Timeout:  cfg.Resource.Timeout,
			Retries:  cfg.Resource.Retries,
			MaxBytes: cfg.Resource.MaxBytes,
		}, logger.Named("transport")),
	}
}

func (r *Runtime) tick(ctx context.Context) {
	// Errors are per-instance traps already logged by the scheduler, or a
	// re-entrant tick, which cannot happen on a single loop.
	_, _ = r.sched.Tick(ctx)
}

// Loop returns the control loop.
func (r *Runtime) Loop() *scheduler.Loop {
	return r.loop
}

// Memory returns the memory bridge over registered guests. Use it only on
// the control goroutine.
func (r *Runtime) Memory() *memview.Bridge {
	return r.memory
}

// RegisterGroup adds an import group, such as a rendering surface binding,
// to the env module. It must be called before the first Load.
func (r *Runtime) RegisterGroup(g engine.ImportGroup) error {
	return r.engine.Register(g)
}

// Close stops the loop, closes every guest, and releases the engine.
// Serve or Run must have returned before Close is called.
func (r *Runtime) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.loop.Stop()
		r.reads.Wait()
		for _, inst := range r.table.Clear() {
			if err := inst.exports.Close(ctx); err != nil {
				r.logger.Warn("close guest", zap.String("module", inst.name), zap.Error(err))
			}
		}
		r.closeErr = r.engine.Close(ctx)
	})
	return r.closeErr
}
