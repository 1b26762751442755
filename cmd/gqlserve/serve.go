package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/hanpama/gqlserve/internal/config"
	eventbus "github.com/hanpama/gqlserve/internal/eventbus"
	logging "github.com/hanpama/gqlserve/internal/logging"
	metrics "github.com/hanpama/gqlserve/internal/metrics"
	otel "github.com/hanpama/gqlserve/internal/otel"
	server "github.com/hanpama/gqlserve/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(cmd.Context(), cfg, logger, ln)
		},
	}
}

// serve runs the server on ln until ctx is done, then drains in-flight
// requests.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, ln net.Listener) error {
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("GraphQL server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// buildHandler wires the event bus subscribers, metrics and the GraphQL
// handler. cleanup releases them in reverse order.
func buildHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	bus := eventbus.New()
	closers = append(closers, logging.Subscribe(bus, logger))

	shutdownTracing, err := otel.Setup(ctx, bus, cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	closers = append(closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(reg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	closers = append(closers, collector.Subscribe(bus))

	exec, err := newExecutor(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("executor: %w", err)
	}
	closers = append(closers, exec.Close)

	h, err := server.New(exec, serverOptions(cfg, logger, bus)...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("server init: %w", err)
	}

	mux := server.NewMux(server.Routes{
		GraphQL:  h,
		GraphiQL: cfg.Server.GraphiQL,
		Metrics:  metrics.Handler(reg),
	})
	return mux, cleanup, nil
}

func serverOptions(cfg *config.Config, logger *zap.Logger, bus *eventbus.Bus) []server.Option {
	opts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithLogger(logger),
		server.WithBus(bus),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	return opts
}
