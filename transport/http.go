package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/wippyai/framehost/errors"
)

// HTTPConfig configures the retrying HTTP fetcher.
type HTTPConfig struct {
	Timeout      time.Duration
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Retries      int
	MaxBytes     int64
}

// HTTP fetches locations over HTTP(S), retrying connection errors and 5xx
// responses.
type HTTP struct {
	client   *retryablehttp.Client
	maxBytes int64
}

// NewHTTP builds an HTTP fetcher. Retry attempts are logged through logger.
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Retries
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	client.Logger = leveledLogger{logger.Named("http").Sugar()}

	return &HTTP{client: client, maxBytes: cfg.MaxBytes}
}

func (h *HTTP) Fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Fetch(location, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Fetch(location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Fetch(location, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, errors.Fetch(location, err)
	}
	return data, nil
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
