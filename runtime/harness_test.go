package runtime

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/framehost/config"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/internal/wasmtest"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/registry"
	"github.com/wippyai/framehost/scheduler"
	"github.com/wippyai/framehost/transport"
)

// harness runs a Runtime on a manually fired loop with in-memory files.
type harness struct {
	rt      *Runtime
	frames  *scheduler.Manual
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
	ctx     context.Context

	mu    sync.Mutex
	files map[string][]byte
}

func newHarness(t *testing.T, mutate func(*config.Config), opts ...Option) *harness {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	core, logs := observer.New(zap.DebugLevel)
	h := &harness{
		frames:  scheduler.NewManual(),
		logs:    logs,
		metrics: metrics.New(prometheus.NewRegistry()),
		files:   make(map[string][]byte),
	}
	fetch := transport.FetcherFunc(func(_ context.Context, location string) ([]byte, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		data, ok := h.files[location]
		if !ok {
			return nil, errors.Fetch(location, os.ErrNotExist)
		}
		return data, nil
	})

	base := []Option{
		WithLogger(zap.New(core)),
		WithMetrics(h.metrics),
		WithFetcher(fetch),
		WithFrameSource(h.frames),
	}
	rt, err := New(context.Background(), cfg, append(base, opts...)...)
	require.NoError(t, err)
	h.rt = rt

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan error, 1)
	go func() { done <- rt.loop.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = rt.Close(context.Background())
	})
	return h
}

func (h *harness) put(name string, data []byte) {
	h.mu.Lock()
	h.files[name] = data
	h.mu.Unlock()
}

func (h *harness) load(t *testing.T, name string, g wasmtest.Guest) registry.Handle {
	t.Helper()
	h.put(name, g.Build())
	handle, err := h.rt.Load(h.ctx, name, "main")
	require.NoError(t, err)
	return handle
}

// sync waits for every task already posted to the loop.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, h.rt.loop.Call(h.ctx, func(context.Context) error { return nil }))
}

func (h *harness) frame(t *testing.T) {
	t.Helper()
	h.frames.Fire()
	h.sync(t)
}

// settleReads waits for fetches to finish and their settlements to run.
func (h *harness) settleReads(t *testing.T) {
	t.Helper()
	h.rt.reads.Wait()
	h.sync(t)
}

func (h *harness) u32(t *testing.T, handle registry.Handle, addr uint32) uint32 {
	t.Helper()
	var v uint32
	require.NoError(t, h.rt.loop.Call(h.ctx, func(context.Context) error {
		w, err := h.rt.memory.Words(handle, addr, 4)
		if err != nil {
			return err
		}
		v = w.At(0)
		return nil
	}))
	return v
}

func (h *harness) bytes(t *testing.T, handle registry.Handle, addr, n uint32) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, h.rt.loop.Call(h.ctx, func(context.Context) error {
		b, err := h.rt.memory.Bytes(handle, addr, n)
		out = append([]byte(nil), b...)
		return err
	}))
	return out
}

func (h *harness) guestLogs() []observer.LoggedEntry {
	return h.logs.Filter(func(e observer.LoggedEntry) bool {
		return e.LoggerName == "guest" && e.Level == zapcore.InfoLevel
	}).All()
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}
