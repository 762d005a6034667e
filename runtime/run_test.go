package runtime

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wippyai/framehost/config"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/internal/wasmtest"
	"github.com/wippyai/framehost/scheduler"
)

func writeImage(t *testing.T, dir, name string, g wasmtest.Guest) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, g.Build(), 0o644))
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.bin"), sequence(16), 0o644))
	image := writeImage(t, dir, "game.wasm", wasmtest.Guest{
		Activate: true,
		ReadName: "config.bin",
		ReadDest: 1024,
		ReadLen:  16,
	})

	cfg := config.Default()
	cfg.Loop.MaxFrames = 3
	cfg.Resource.Base = dir
	frames := scheduler.NewManual()

	rt, err := New(context.Background(), cfg, WithFrameSource(frames), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background(), image, "main") }()

	// A snapshot is taken on the loop, so once it shows the guest, init has run.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		snap, err := rt.Snapshot(ctx)
		return err == nil && len(snap.Instances) == 1
	}, 5*time.Second, 5*time.Millisecond)
	rt.reads.Wait()
	for i := 0; i < 3; i++ {
		frames.Fire()
	}
	require.NoError(t, <-done)

	inst, err := rt.table.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), inst.updates)

	mem := inst.Exports().Memory()
	data, ok := mem.Read(1024, 16)
	require.True(t, ok)
	assert.Equal(t, sequence(16), data)

	flag, ok := mem.Read(wasmtest.AddrReadFlag, 4)
	require.True(t, ok)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(flag))

	// The loop has exited; calls onto it fail instead of waiting.
	closed := &errors.Error{Kind: errors.KindClosed}
	_, err = rt.Snapshot(context.Background())
	assert.True(t, errors.Is(err, closed))
	assert.True(t, errors.Is(rt.Unload(context.Background(), 0), closed))
	_, err = rt.Load(context.Background(), image, "main")
	assert.ErrorIs(t, err, errors.ErrLoad)
	assert.True(t, errors.Is(err, closed))
}

func TestRun_LoadFailureStopsLoop(t *testing.T) {
	rt, err := New(context.Background(), nil, WithFrameSource(scheduler.NewManual()))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	err = rt.Run(context.Background(), filepath.Join(t.TempDir(), "missing.wasm"), "main")
	require.ErrorIs(t, err, errors.ErrLoad)
}

func TestServe_HandlesFollowImageOrder(t *testing.T) {
	dir := t.TempDir()
	first := writeImage(t, dir, "first.wasm", wasmtest.Guest{})
	second := writeImage(t, dir, "second.wasm", wasmtest.Guest{})
	broken := filepath.Join(dir, "broken.wasm")

	rt, err := New(context.Background(), nil, WithFrameSource(scheduler.NewManual()))
	require.NoError(t, err)
	defer rt.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rt.Serve(ctx,
			Image{Source: first, Target: "a"},
			Image{Source: broken, Target: "b"},
			Image{Source: second, Target: "c"})
	}()

	require.Eventually(t, func() bool { return rt.table.Len() == 2 }, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled, "one good image keeps the loop running")

	a, err := rt.table.Get(0)
	require.NoError(t, err)
	assert.Equal(t, first, a.Source())
	b, err := rt.table.Get(1)
	require.NoError(t, err)
	assert.Equal(t, second, b.Source())
}

func TestDecodeImage(t *testing.T) {
	plain := []byte{0x00, 0x61, 0x73, 0x6d}
	out, err := decodeImage(plain, 0)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	_, err = decodeImage([]byte{0x1f, 0x8b, 0x00}, 0)
	require.Error(t, err, "truncated gzip")
}
