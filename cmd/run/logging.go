package main

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/framehost/config"
)

// newLogger writes to w, as colored console output when w is a terminal
// and as JSON otherwise.
func newLogger(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	if isTerminal(w) {
		enc = consoleEncoder(true)
	}
	return buildLogger(cfg, level, enc, zapcore.AddSync(w)), nil
}

func consoleEncoder(color bool) zapcore.Encoder {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

func buildLogger(cfg config.LogConfig, level zapcore.Level, enc zapcore.Encoder, ws zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(enc, ws, level)
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zap.New(core, opts...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ringSink keeps the last lines written to it for the dashboard.
type ringSink struct {
	lines []string
	max   int
	mu    sync.Mutex
}

func newRingSink(max int) *ringSink {
	return &ringSink{max: max}
}

func (r *ringSink) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		r.lines = append(r.lines, line)
	}
	if over := len(r.lines) - r.max; over > 0 {
		r.lines = append(r.lines[:0:0], r.lines[over:]...)
	}
	return len(p), nil
}

func (r *ringSink) Sync() error { return nil }

// Lines returns a copy of the buffered lines, oldest first.
func (r *ringSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
