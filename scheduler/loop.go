package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/framehost/errors"
)

// State is the loop's scheduling state.
type State int32

const (
	Idle State = iota
	Scheduled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// Task is work run on the control goroutine.
type Task func(ctx context.Context)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFrameSource replaces the default 60 fps ticker.
func WithFrameSource(fs FrameSource) LoopOption {
	return func(l *Loop) { l.frames = fs }
}

// WithMaxFrames makes Run return after n frames. 0 means no limit.
func WithMaxFrames(n uint64) LoopOption {
	return func(l *Loop) { l.maxFrames = n }
}

// WithLoopLogger sets the logger for task failures.
func WithLoopLogger(logger *zap.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// Loop is the single control goroutine.
type Loop struct {
	frames    FrameSource
	onFrame   func(ctx context.Context)
	logger    *zap.Logger
	wake      chan struct{}
	stop      chan struct{}
	exited    chan struct{}
	queue     []Task
	maxFrames uint64
	count     atomic.Uint64
	state     atomic.Int32
	closed    atomic.Bool
	mu        sync.Mutex
	stopOnce  sync.Once
}

// NewLoop creates a loop that calls onFrame once per frame.
func NewLoop(onFrame func(ctx context.Context), opts ...LoopOption) *Loop {
	l := &Loop{
		onFrame: onFrame,
		logger:  zap.NewNop(),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.frames == nil {
		l.frames = Ticker(60)
	}
	return l
}

type loopKey struct{}

// OnLoop reports whether ctx belongs to a task or frame running on l.
func (l *Loop) OnLoop(ctx context.Context) bool {
	owner, _ := ctx.Value(loopKey{}).(*Loop)
	return owner == l
}

// State returns the current scheduling state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Frames returns the number of frames run so far.
func (l *Loop) Frames() uint64 {
	return l.count.Load()
}

// Post queues t to run on the control goroutine. It never blocks. Tasks
// posted after Run has returned are dropped.
func (l *Loop) Post(t Task) {
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		l.logger.Debug("task dropped, loop exited")
		return
	}
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the control goroutine and waits for its result. When
// ctx already belongs to the loop, fn runs inline. Once Run has returned,
// Call fails with KindClosed.
func (l *Loop) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.OnLoop(ctx) {
		return fn(ctx)
	}
	if l.closed.Load() {
		return errLoopExited()
	}

	done := make(chan error, 1)
	l.Post(func(ctx context.Context) {
		done <- fn(ctx)
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.exited:
		// The task may have run just before the loop exited.
		select {
		case err := <-done:
			return err
		default:
			return errLoopExited()
		}
	}
}

func errLoopExited() error {
	return errors.New(errors.PhaseSchedule, errors.KindClosed).Detail("loop exited").Build()
}

// Stop makes Run return. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Run executes frames and tasks until ctx is cancelled, Stop is called, or
// the frame limit is reached. It returns ctx.Err() on cancellation and nil
// otherwise. The frame source is stopped when Run returns. A loop runs
// once: Run on an exited loop fails with KindClosed.
func (l *Loop) Run(ctx context.Context) error {
	if l.closed.Load() {
		return errLoopExited()
	}
	if !l.state.CompareAndSwap(int32(Idle), int32(Scheduled)) {
		return errors.New(errors.PhaseSchedule, errors.KindReentrant).Detail("loop already running").Build()
	}
	defer func() {
		l.mu.Lock()
		l.closed.Store(true)
		dropped := len(l.queue)
		l.queue = nil
		close(l.exited)
		l.mu.Unlock()
		l.state.Store(int32(Idle))
		if dropped > 0 {
			l.logger.Debug("loop exited with queued tasks", zap.Int("dropped", dropped))
		}
	}()
	defer l.frames.Stop()

	ctx = context.WithValue(ctx, loopKey{}, l)
	l.logger.Debug("loop started", zap.Uint64("max_frames", l.maxFrames))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			l.drain(ctx)
			return nil
		case <-l.wake:
			l.drain(ctx)
		case <-l.frames.C():
			l.drain(ctx)
			l.frame(ctx)
			if l.maxFrames > 0 && l.count.Load() >= l.maxFrames {
				l.drain(ctx)
				return nil
			}
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, t := range tasks {
			l.runTask(ctx, t)
		}
	}
}

func (l *Loop) runTask(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	t(ctx)
}

func (l *Loop) frame(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("frame panicked", zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	l.count.Add(1)
	if l.onFrame != nil {
		l.onFrame(ctx)
	}
}
