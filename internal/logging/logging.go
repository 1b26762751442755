// Package logging builds the process logger and the access log.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/gqlserve/internal/eventbus"
	events "github.com/hanpama/gqlserve/internal/events"
	reqid "github.com/hanpama/gqlserve/internal/reqid"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Config struct {
	Level  string
	Format string
}

// New builds a logger writing to stderr. Format "json" uses the production
// encoder, "console" the development one.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	var zc zap.Config
	switch cfg.Format {
	case "", FormatJSON:
		zc = zap.NewProductionConfig()
	case FormatConsole:
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Subscribe writes an access log entry for every finished HTTP request and a
// debug entry for every rejected one.
func Subscribe(bus *eventbus.Bus, logger *zap.Logger) (unsubscribe func()) {
	finish := eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		logger.Info("http request",
			zap.String("request_id", rid),
			zap.String("method", e.Request.Method),
			zap.String("path", e.Request.URL.Path),
			zap.Int("status", e.Status),
			zap.Duration("duration", e.Duration),
		)
	})
	rejected := eventbus.Subscribe(bus, func(ctx context.Context, e events.RequestRejected) {
		rid, _ := reqid.FromContext(ctx)
		logger.Debug("request rejected",
			zap.String("request_id", rid),
			zap.String("reason", e.Reason),
			zap.String("message", e.Message),
		)
	})
	return func() {
		finish()
		rejected()
	}
}
