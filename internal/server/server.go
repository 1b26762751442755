package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	eventbus "github.com/hanpama/gqlserve/internal/eventbus"
	events "github.com/hanpama/gqlserve/internal/events"
	executor "github.com/hanpama/gqlserve/internal/executor"
	reqid "github.com/hanpama/gqlserve/internal/reqid"
)

// Engine executes normalized requests. The returned channel delivers a single
// Outcome.
type Engine interface {
	ExecuteAsync(ctx context.Context, params executor.Params) <-chan executor.Outcome
}

// Handler is an http.Handler that serves a GraphQL endpoint.
// It normalizes requests, hands them to the engine, and writes the result.
type Handler struct {
	engine Engine
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// Logger receives engine failures. Defaults to a no-op logger.
	Logger *zap.Logger

	// Bus receives request lifecycle events. Nil disables them.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithBus(b *eventbus.Bus) Option  { return func(o *Options) { o.Bus = b } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler in front of engine.
func New(engine Engine, opts ...Option) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("server: engine is required")
	}
	var op Options
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	return &Handler{engine: engine, opt: op}, nil
}

var errNoOutcome = errors.New("server: engine finished without a result")

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, rid := reqid.FromRequest(r)
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	w.Header().Set(reqid.Header, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, h.opt.Bus, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		h.writeJSON(w, status, errorResult("method not allowed", "method-not-allowed"))
		return
	}

	req, err := Normalize(r, h.opt.MaxBodyBytes)
	if err != nil {
		var rej *Rejection
		if !errors.As(err, &rej) {
			rej = &Rejection{Reason: ReasonUnreadableBody, Message: err.Error()}
		}
		status = rej.Status()
		eventbus.Publish(ctx, h.opt.Bus, events.RequestRejected{Request: r, Reason: string(rej.Reason), Message: rej.Message})
		h.writeJSON(w, status, errorResult(rej.Message, string(rej.Reason)))
		return
	}

	res, err := h.execute(ctx, req)
	if err != nil {
		h.opt.Logger.Error("graphql execution failed",
			zap.String("request_id", rid),
			zap.Stringer("source", req.Source),
			zap.String("operation", req.OperationName),
			zap.Error(err),
		)
		status = http.StatusInternalServerError
		h.writeJSON(w, status, errorResult("internal server error", "internal-error"))
		return
	}
	h.writeJSON(w, status, res)
}

// execute hands req to the engine and waits for its outcome.
func (h *Handler) execute(ctx context.Context, req *Request) (*executor.ExecutionResult, error) {
	start := time.Now()
	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLStart{
		Query:         req.Query,
		OperationName: req.OperationName,
		Source:        req.Source.String(),
	})

	outcome, ok := <-h.engine.ExecuteAsync(ctx, req.Params())
	if !ok || (outcome.Err == nil && outcome.Result == nil) {
		outcome.Err = errNoOutcome
	}
	if outcome.Err != nil {
		eventbus.Publish(ctx, h.opt.Bus, events.ExecutionFailed{
			Query:         req.Query,
			OperationName: req.OperationName,
			Err:           outcome.Err,
			Duration:      time.Since(start),
		})
		return nil, outcome.Err
	}

	eventbus.Publish(ctx, h.opt.Bus, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: outcome.Result.OperationType,
		Errors:        outcome.Result.Errors,
		Duration:      time.Since(start),
	})
	return outcome.Result, nil
}

// ------------------ Response formatting ------------------

// errorResult is the envelope for requests that never reached the engine.
func errorResult(message, code string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: gqlerror.List{{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}}}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.opt.Logger.Warn("writing response failed", zap.Error(err))
	}
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
