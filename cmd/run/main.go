package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wippyai/framehost/config"
	"github.com/wippyai/framehost/engine"
	"github.com/wippyai/framehost/errors"
	"github.com/wippyai/framehost/metrics"
	"github.com/wippyai/framehost/runtime"
)

func main() {
	var (
		wasmFiles   = flag.String("wasm", "", "Guest images to load, comma-separated (paths or http(s) URLs)")
		mount       = flag.String("mount", "main", "Presentation target passed to every guest")
		configFile  = flag.String("config", "", "YAML configuration file")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)")
		frames      = flag.Uint64("frames", 0, "Stop after this many frames (0 runs until interrupted)")
		logLevel    = flag.String("log-level", "", "Log level (overrides config)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFiles == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <a.wasm[,b.wasm]> [-mount target] [-config file.yaml] [-frames n]")
		fmt.Fprintln(os.Stderr, "       run -wasm <a.wasm> -metrics :9090")
		fmt.Fprintln(os.Stderr, "       run -wasm <a.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Address = *metricsAddr
	}
	if *frames > 0 {
		cfg.Loop.MaxFrames = *frames
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var images []runtime.Image
	for _, src := range strings.Split(*wasmFiles, ",") {
		if src = strings.TrimSpace(src); src != "" {
			images = append(images, runtime.Image{Source: src, Target: *mount})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *interactive {
		err = runInteractive(ctx, cfg, images)
	} else {
		err = run(ctx, cfg, images)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, images []runtime.Image) error {
	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	return serve(ctx, cfg, logger, images, nil)
}

// serve builds the runtime and blocks until the loop ends. ready, when set,
// receives the runtime once it exists.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, images []runtime.Image, ready func(*runtime.Runtime)) error {
	engine.SetLogger(logger.Named("engine"))
	defer engine.SetLogger(nil)

	opts := []runtime.Option{runtime.WithLogger(logger)}
	if cfg.Metrics.Address != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, runtime.WithMetrics(metrics.New(reg)))

		srv := startMetricsServer(cfg.Metrics.Address, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rt, err := runtime.New(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(context.Background())

	if ready != nil {
		ready(rt)
	}

	err = rt.Serve(ctx, images...)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted", zap.Uint64("frames", rt.Loop().Frames()))
		return nil
	}
	if err == nil {
		logger.Info("loop finished", zap.Uint64("frames", rt.Loop().Frames()))
	}
	return err
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
