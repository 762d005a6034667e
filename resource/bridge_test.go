package resource

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/framehost"
	fherrors "github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/memview"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/scheduler"
	"github.com/wippyai/framehost/transport"
)

type memory struct{ buf []byte }

func (m *memory) Read(offset, n uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(n)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end:end], true
}

func (m *memory) Size() uint32 { return uint32(len(m.buf)) }

type guest struct{ mem *memory }

func (g *guest) Exports() framehost.Exports { return g }
func (g *guest) Memory() framehost.Memory   { return g.mem }
func (g *guest) Call(context.Context, string, ...uint64) ([]uint64, error) {
	return nil, nil
}
func (g *guest) Close(context.Context) error { return nil }

// queue is a control goroutine stand-in run explicitly by the test.
type queue struct {
	mu    sync.Mutex
	tasks []scheduler.Task
}

func (q *queue) Post(t scheduler.Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

func (q *queue) run(ctx context.Context) int {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, t := range tasks {
		t(ctx)
	}
	return len(tasks)
}

type completion struct {
	handle registry.Handle
	ok     bool
}

type completions struct {
	calls []completion
}

func (c *completions) Complete(_ context.Context, h registry.Handle, ok bool) error {
	c.calls = append(c.calls, completion{h, ok})
	return nil
}

type fixture struct {
	bridge  *Bridge
	queue   *queue
	done    *completions
	mem     *memory
	handle  registry.Handle
	metrics *metrics.Metrics
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, fetch transport.FetcherFunc) *fixture {
	t.Helper()
	table := registry.NewTable[*guest]()
	mem := &memory{buf: make([]byte, 4096)}
	h := table.Insert(&guest{mem: mem})

	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		queue:   &queue{},
		done:    &completions{},
		mem:     mem,
		handle:  h,
		metrics: metrics.New(prometheus.NewRegistry()),
		logs:    logs,
	}
	f.bridge = NewBridge(Config{
		Fetcher:   fetch,
		Poster:    f.queue,
		Memory:    memview.New(memview.TableResolver(table), memview.TextStrict),
		Completer: f.done,
		Logger:    zap.New(core),
		Metrics:   f.metrics,
		Base:      "assets",
	})
	return f
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}

func TestRequest_CopiesAndCompletes(t *testing.T) {
	var gotLocation string
	f := newFixture(t, func(_ context.Context, location string) ([]byte, error) {
		gotLocation = location
		return sequence(16), nil
	})
	ctx := context.Background()

	pr, err := f.bridge.Request(ctx, f.handle, "config.bin", Region{Ptr: 1024, Len: 16})
	require.NoError(t, err)
	assert.Equal(t, "config.bin", pr.Name)

	f.bridge.Wait()
	assert.Empty(t, f.done.calls, "completion waits for the control goroutine")
	assert.Len(t, f.bridge.Pending(), 1)

	require.Equal(t, 1, f.queue.run(ctx))

	assert.Equal(t, "assets/config.bin", filepath.ToSlash(gotLocation))
	assert.Equal(t, sequence(16), f.mem.buf[1024:1040])
	assert.Equal(t, []completion{{f.handle, true}}, f.done.calls)
	assert.Empty(t, f.bridge.Pending())
	assert.Equal(t, 16.0, testutil.ToFloat64(f.metrics.ReadBytes))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PendingReads))
}

func TestRequest_ShortContentLeavesTail(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		return []byte{0xAA, 0xBB}, nil
	})
	ctx := context.Background()
	copy(f.mem.buf[100:], []byte{9, 9, 9, 9})

	_, err := f.bridge.Request(ctx, f.handle, "small.bin", Region{Ptr: 100, Len: 4})
	require.NoError(t, err)
	f.bridge.Wait()
	f.queue.run(ctx)

	assert.Equal(t, []byte{0xAA, 0xBB, 9, 9}, f.mem.buf[100:104])
	assert.Equal(t, []completion{{f.handle, true}}, f.done.calls)
}

func TestSettle_Overflow(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		return sequence(32), nil
	})
	ctx := context.Background()

	pr := &PendingRead{ID: 1, Handle: f.handle, Dest: Region{Ptr: 0, Len: 16}, Location: "big.bin"}
	err := f.bridge.settle(ctx, pr, sequence(32), nil)
	require.ErrorIs(t, err, fherrors.ErrBufferOverflow)

	assert.Equal(t, make([]byte, 4096), f.mem.buf, "no bytes written on overflow")
	assert.Equal(t, []completion{{f.handle, false}}, f.done.calls, "exactly one completion")
	assert.Equal(t, 1, f.logs.FilterMessage("read overflow").Len())
}

func TestRequest_OverflowThroughQueue(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		return sequence(17), nil
	})
	ctx := context.Background()

	_, err := f.bridge.Request(ctx, f.handle, "big.bin", Region{Ptr: 8, Len: 16})
	require.NoError(t, err)
	f.bridge.Wait()
	f.queue.run(ctx)

	assert.Equal(t, make([]byte, 4096), f.mem.buf)
	assert.Equal(t, []completion{{f.handle, false}}, f.done.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reads.WithLabelValues(metrics.ReadOverflow)))
}

func TestRequest_FetchFailure(t *testing.T) {
	f := newFixture(t, func(_ context.Context, location string) ([]byte, error) {
		return nil, fherrors.Fetch(location, errors.New("404"))
	})
	ctx := context.Background()

	_, err := f.bridge.Request(ctx, f.handle, "missing.bin", Region{Ptr: 0, Len: 16})
	require.NoError(t, err, "fetch failures are only reported to the guest")
	f.bridge.Wait()
	f.queue.run(ctx)

	assert.Equal(t, make([]byte, 4096), f.mem.buf)
	assert.Equal(t, []completion{{f.handle, false}}, f.done.calls)
	assert.Equal(t, 1, f.logs.FilterMessage("read failed").Len())
}

func TestRequest_DestinationOutsideMemory(t *testing.T) {
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		return sequence(8), nil
	})
	ctx := context.Background()

	_, err := f.bridge.Request(ctx, f.handle, "a.bin", Region{Ptr: 4092, Len: 64})
	require.NoError(t, err)
	f.bridge.Wait()
	f.queue.run(ctx)

	assert.Equal(t, make([]byte, 4096), f.mem.buf)
	assert.Equal(t, []completion{{f.handle, false}}, f.done.calls)
}

func TestRequest_RejectedName(t *testing.T) {
	fetched := false
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		fetched = true
		return nil, nil
	})
	ctx := context.Background()

	_, err := f.bridge.Request(ctx, f.handle, "../etc/passwd", Region{Ptr: 0, Len: 16})
	require.Error(t, err)
	assert.Empty(t, f.done.calls, "completion is never run inline")

	f.queue.run(ctx)
	assert.False(t, fetched)
	assert.Equal(t, []completion{{f.handle, false}}, f.done.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reads.WithLabelValues(metrics.ReadRejected)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PendingReads))
}

func TestPending_Ordered(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, func(context.Context, string) ([]byte, error) {
		<-release
		return nil, nil
	})
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := f.bridge.Request(ctx, f.handle, name, Region{Len: 1})
		require.NoError(t, err)
	}

	pending := f.bridge.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].Name)
	assert.Equal(t, "c", pending[2].Name)
	assert.Less(t, pending[0].ID, pending[1].ID)

	close(release)
	f.bridge.Wait()
	assert.Equal(t, 3, f.queue.run(ctx))
	assert.Empty(t, f.bridge.Pending())
}
