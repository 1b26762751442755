package server

import "net/http"

// Routes holds the handlers mounted by NewMux. Nil handlers are left out.
type Routes struct {
	GraphQL  http.Handler
	GraphiQL bool
	Metrics  http.Handler
}

// NewMux mounts the GraphQL endpoint on /graphql, GraphiQL on /, metrics on
// /metrics and a liveness probe on /healthz.
func NewMux(routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	if routes.GraphQL != nil {
		mux.Handle("/graphql", routes.GraphQL)
	}
	if routes.GraphiQL {
		mux.Handle("/", GraphiQL())
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
