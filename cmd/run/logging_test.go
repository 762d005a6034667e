package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/framehost/config"
)

func TestRingSink_KeepsLastLines(t *testing.T) {
	r := newRingSink(3)
	for _, s := range []string{"a\n", "b\nc\n", "d\n"} {
		_, err := r.Write([]byte(s))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "c", "d"}, r.Lines())
}

func TestNewLogger_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", zap.Uint32("handle", 2))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, float64(2), entry["handle"])
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestBuildLogger_RingSink(t *testing.T) {
	r := newRingSink(10)
	logger := buildLogger(config.LogConfig{}, zapcore.InfoLevel, consoleEncoder(false), r)
	logger.Info("guest says hi")

	lines := r.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "guest says hi")
}
