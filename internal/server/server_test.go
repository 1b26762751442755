package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	eventbus "github.com/hanpama/gqlserve/internal/eventbus"
	events "github.com/hanpama/gqlserve/internal/events"
	executor "github.com/hanpama/gqlserve/internal/executor"
	persons "github.com/hanpama/gqlserve/internal/persons"
	reqid "github.com/hanpama/gqlserve/internal/reqid"
	schema "github.com/hanpama/gqlserve/internal/schema"
)

const personsQuery = `{persons{name}}`

const personsResponse = `{"data":{"persons":[{"name":"Ada"},{"name":"Haskell"}]},"errors":[],"extensions":null}`

const filteredQuery = `query($n: String) { persons(nameLike: $n) { name } }`

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	exec, err := executor.NewExecutor(persons.NewRuntime(), persons.Schema())
	require.NoError(t, err)
	t.Cleanup(exec.Close)
	h, err := New(exec, opts...)
	require.NoError(t, err)
	return h
}

type engineFunc func(ctx context.Context, params executor.Params) <-chan executor.Outcome

func (f engineFunc) ExecuteAsync(ctx context.Context, params executor.Params) <-chan executor.Outcome {
	return f(ctx, params)
}

func serve(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getURL(params url.Values) string { return "/graphql?" + params.Encode() }

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestServeHTTP_JSONBody(t *testing.T) {
	h := newTestHandler(t)
	w := serve(h, "POST", "/graphql", "application/json", `{"query":"`+personsQuery+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, personsResponse, w.Body.String())
}

func TestServeHTTP_GetMatchesPost(t *testing.T) {
	h := newTestHandler(t)
	post := serve(h, "POST", "/graphql", "application/json", `{"query":"`+personsQuery+`"}`)
	get := serve(h, "GET", getURL(url.Values{"query": {personsQuery}}), "", "")

	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, post.Body.String(), get.Body.String())
}

func TestServeHTTP_GraphQLBody(t *testing.T) {
	h := newTestHandler(t)
	w := serve(h, "POST", "/graphql", "application/graphql", personsQuery)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, personsResponse, w.Body.String())
}

func TestServeHTTP_Variables(t *testing.T) {
	h := newTestHandler(t)

	t.Run("POST", func(t *testing.T) {
		w := serve(h, "POST", "/graphql", "application/json",
			`{"query":"query($n: String) { persons(nameLike: $n) { name } }","variables":{"n":"ada"}}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `[{"name":"Ada"}]`, gjson.Get(w.Body.String(), "data.persons").Raw)
	})

	t.Run("GET URL encoded", func(t *testing.T) {
		w := serve(h, "GET", getURL(url.Values{"query": {filteredQuery}, "variables": {`{"n":"KELL"}`}}), "", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `[{"name":"Haskell"}]`, gjson.Get(w.Body.String(), "data.persons").Raw)
	})

	t.Run("Query string variables win over body", func(t *testing.T) {
		target := getURL(url.Values{"query": {filteredQuery}, "variables": {`{"n":"has"}`}})
		w := serve(h, "POST", target, "application/json", `{"query":"{ x }","variables":{"n":"ada"}}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `[{"name":"Haskell"}]`, gjson.Get(w.Body.String(), "data.persons").Raw)
	})
}

func TestServeHTTP_QueryStringPrecedence(t *testing.T) {
	h := newTestHandler(t)
	target := getURL(url.Values{"query": {`{persons{age}}`}})
	w := serve(h, "POST", target, "application/json", `{"query":"{persons{name}}"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, `[20,42]`, gjson.Get(body, "data.persons.#.age").Raw)
	assert.False(t, gjson.Get(body, "data.persons.0.name").Exists())
}

func TestServeHTTP_Idempotent(t *testing.T) {
	h := newTestHandler(t)
	first := serve(h, "POST", "/graphql", "application/json", `{"query":"{persons{name age}}"}`)
	second := serve(h, "POST", "/graphql", "application/json", `{"query":"{persons{name age}}"}`)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestServeHTTP_GraphQLErrorsAreOK(t *testing.T) {
	h := newTestHandler(t)
	w := serve(h, "POST", "/graphql", "application/json", `{"query":"{ nope }"}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, gjson.Null, gjson.Get(body, "data").Type)
	assert.NotEmpty(t, gjson.Get(body, "errors.0.message").String())
}

func TestServeHTTP_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		status      int
		code        string
	}{
		{name: "GET without query", method: "GET", target: "/graphql", status: 400, code: "missing-query"},
		{name: "POST empty body", method: "POST", target: "/graphql", contentType: "application/json", status: 400, code: "missing-query"},
		{name: "POST malformed JSON", method: "POST", target: "/graphql", contentType: "application/json", body: `{`, status: 400, code: "malformed-json"},
		{name: "POST malformed variables", method: "POST", target: "/graphql", contentType: "application/json", body: `{"query":"{persons{name}}","variables":[]}`, status: 400, code: "malformed-variables"},
		{name: "GET malformed variables", method: "GET", target: "/graphql?query=q&variables=x", status: 400, code: "malformed-variables"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h, err := New(engineFunc(func(ctx context.Context, params executor.Params) <-chan executor.Outcome {
				calls++
				return nil
			}))
			require.NoError(t, err)

			w := serve(h, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := w.Body.String()
			assert.Equal(t, gjson.Null, gjson.Get(body, "data").Type)
			assert.Equal(t, tt.code, gjson.Get(body, "errors.0.extensions.code").String())
			assert.NotEmpty(t, gjson.Get(body, "errors.0.message").String())
			assert.Equal(t, 0, calls, "engine must not be invoked")
		})
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	w := serve(h, "PUT", "/graphql", "application/json", `{"query":"{persons{name}}"}`)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Allow"))
	assert.Equal(t, "method-not-allowed", gjson.Get(w.Body.String(), "errors.0.extensions.code").String())
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	// simple request
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{persons{name}}"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	assert.Equal(t, http.StatusNoContent, pw.Code)
	assert.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET,POST,OPTIONS", pw.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_SpecificOrigin(t *testing.T) {
	h := newTestHandler(t, WithCORS("https://a.example"))

	req := httptest.NewRequest("GET", getURL(url.Values{"query": {personsQuery}}), nil)
	req.Header.Set("Origin", "https://a.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://a.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	req.Header.Set("Origin", "https://b.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(10))
	w := serve(h, "POST", "/graphql", "application/json", `{"query":"1234567890"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "body-too-large", gjson.Get(w.Body.String(), "errors.0.extensions.code").String())
}

func TestPretty(t *testing.T) {
	h := newTestHandler(t, WithPretty())
	w := serve(h, "POST", "/graphql", "application/graphql", personsQuery)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\n  \"data\": {")
	assert.JSONEq(t, personsResponse, w.Body.String())
}

func TestRequestID(t *testing.T) {
	var captured string
	rt := executor.NewMockRuntime(nil)
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	exec, err := executor.NewExecutor(rt, schema.MustBuildFromSDL(`type Query { hello: String }`))
	require.NoError(t, err)
	h, err := New(exec)
	require.NoError(t, err)

	t.Run("Generated", func(t *testing.T) {
		w := serve(h, "POST", "/graphql", "application/json", `{"query":"{ hello }"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, w.Header().Get(reqid.Header))
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ hello }"}`))
		req.Header.Set(reqid.Header, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", captured)
		assert.Equal(t, "abc-123", w.Header().Get(reqid.Header))
	})
}

func TestTimeout(t *testing.T) {
	var hasDeadline bool
	h, err := New(engineFunc(func(ctx context.Context, params executor.Params) <-chan executor.Outcome {
		_, hasDeadline = ctx.Deadline()
		out := make(chan executor.Outcome, 1)
		out <- executor.Outcome{Result: &executor.ExecutionResult{}}
		close(out)
		return out
	}), WithTimeout(0))
	require.NoError(t, err)

	serve(h, "POST", "/graphql", "application/graphql", "{ x }")
	assert.False(t, hasDeadline)

	h.opt.Timeout = time.Minute
	serve(h, "POST", "/graphql", "application/graphql", "{ x }")
	assert.True(t, hasDeadline)
}

func TestEngineFailure(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
	}{
		{
			name: "Outcome error",
			engine: engineFunc(func(ctx context.Context, params executor.Params) <-chan executor.Outcome {
				out := make(chan executor.Outcome, 1)
				out <- executor.Outcome{Err: errors.New("backend down")}
				close(out)
				return out
			}),
		},
		{
			name: "Closed without outcome",
			engine: engineFunc(func(ctx context.Context, params executor.Params) <-chan executor.Outcome {
				out := make(chan executor.Outcome)
				close(out)
				return out
			}),
		},
		{
			name: "Resolver panic",
			engine: func() Engine {
				rt := executor.NewMockRuntime(map[string]executor.MockResolver{
					"Query.hello": func(ctx context.Context, source any, args map[string]any) (any, error) {
						panic("boom")
					},
				})
				exec, err := executor.NewExecutor(rt, schema.MustBuildFromSDL(`type Query { hello: String }`))
				require.NoError(t, err)
				return exec
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			bus := eventbus.New()
			var failed []events.ExecutionFailed
			defer eventbus.Subscribe(bus, func(ctx context.Context, e events.ExecutionFailed) {
				failed = append(failed, e)
			})()
			h, err := New(tt.engine, WithLogger(zap.New(core)), WithBus(bus))
			require.NoError(t, err)

			w := serve(h, "POST", "/graphql", "application/json", `{"query":"query Op { hello }","operationName":"Op"}`)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "internal-error", gjson.Get(w.Body.String(), "errors.0.extensions.code").String())
			require.Len(t, failed, 1)
			assert.Equal(t, "Op", failed[0].OperationName)

			entries := logs.FilterMessage("graphql execution failed").AllUntimed()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, w.Header().Get(reqid.Header), fields["request_id"])
			assert.Equal(t, "json-body", fields["source"])
			assert.Equal(t, "Op", fields["operation"])
		})
	}
}

func TestEvents(t *testing.T) {
	bus := eventbus.New()
	var got []string
	defer eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPStart) { got = append(got, "http-start") })()
	defer eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLStart) { got = append(got, "graphql-start:"+e.Source) })()
	defer eventbus.Subscribe(bus, func(ctx context.Context, e events.GraphQLFinish) { got = append(got, "graphql-finish:"+e.OperationType) })()
	defer eventbus.Subscribe(bus, func(ctx context.Context, e events.RequestRejected) { got = append(got, "rejected:"+e.Reason) })()
	defer eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
		got = append(got, "http-finish:"+http.StatusText(e.Status))
	})()
	h := newTestHandler(t, WithBus(bus))

	serve(h, "GET", getURL(url.Values{"query": {personsQuery}}), "", "")
	serve(h, "GET", "/graphql", "", "")

	want := []string{
		"http-start", "graphql-start:query-string", "graphql-finish:query", "http-finish:OK",
		"http-start", "rejected:missing-query", "http-finish:Bad Request",
	}
	assert.Equal(t, want, got)
}

func TestNewMux(t *testing.T) {
	mux := NewMux(Routes{
		GraphQL:  newTestHandler(t),
		GraphiQL: true,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	})

	w := serve(mux, "GET", getURL(url.Values{"query": {personsQuery}}), "", "")
	assert.JSONEq(t, personsResponse, w.Body.String())

	w = serve(mux, "GET", "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "graphiql")

	w = serve(mux, "GET", "/elsewhere", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(mux, "POST", "/", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(mux, "GET", "/metrics", "", "")
	assert.Equal(t, "metrics", w.Body.String())

	w = serve(mux, "GET", "/healthz", "", "")
	assert.Equal(t, "ok", w.Body.String())
}

func TestNewMux_GraphiQLDisabled(t *testing.T) {
	mux := NewMux(Routes{GraphQL: newTestHandler(t)})
	w := serve(mux, "GET", "/", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
