package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/rapidriter/wasm-renderer/application/config"
	"github.com/rapidriter/wasm-renderer/domain/entities"
	"github.com/rapidriter/wasm-renderer/host"
	"github.com/rapidriter/wasm-renderer/hostfuncs"
	"github.com/rapidriter/wasm-renderer/log"
	"github.com/rapidriter/wasm-renderer/metrics"
	"github.com/rapidriter/wasm-renderer/server"
)

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config YAML (optional)")
	listen := fs.String("listen", "", "Listen address override")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	recorder := metrics.NewRecorder(true)
	registry, err := hostfuncs.DefaultRegistry(hostfuncs.SystemClock{},
		hostfuncs.WithMiddleware(
			hostfuncs.CountingMiddleware(recorder.HostCall),
			hostfuncs.LoggingMiddleware(logger),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create host functions: %w", err)
	}

	executor, err := host.NewExecutor(ctx,
		host.WithHostFunctions(registry),
		host.WithMemoryLimitPages(cfg.MemoryLimitPages),
		host.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { _ = executor.Close(context.WithoutCancel(ctx)) }()

	srv, err := server.New(executor,
		server.WithFramePeriod(cfg.FramePeriod),
		server.WithMaxFrameIndex(entities.FrameIndex(cfg.MaxFrameIndex)),
		server.WithKeepAlive(cfg.KeepAlive),
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithMaxConcurrentStreams(cfg.MaxConcurrentStreams),
		server.WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		server.WithRenderTimeout(cfg.RenderTimeout),
		server.WithRecorder(recorder),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info("wasmrender starting", "version", version, "capabilities", registry.Names())
	if err := srv.ListenAndServe(ctx, cfg.Listen, cfg.ShutdownTimeout); err != nil {
		return err
	}
	logger.Info("wasmrender stopped")
	return nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(
		log.WithLevel(level),
		log.WithFormat(cfg.Format),
		log.WithWriter(w),
		log.WithContextAttrs(server.LogAttrs),
	)
}
