package main

import (
	"net/http"
	"net/http/pprof"

	_ "github.com/jeamon/book-records/docs"
	"github.com/julienschmidt/httprouter"
	httpswagger "github.com/swaggo/http-swagger/v2"
)

// route binds a handler to a method and a path.
type route struct {
	method string
	path   string
	handle httprouter.Handle
}

func register(router *httprouter.Router, chain func(httprouter.Handle) httprouter.Handle, routes []route) {
	for _, r := range routes {
		router.Handle(r.method, r.path, chain(r.handle))
	}
}

// SetupRoutes injects book and ops related endpoints if required.
// Unknown paths get a json formatted not found response.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.NotFound = api.NotFound()
	api.SetupBookRoutes(router, m)
	if api.config.OpsEndpointsEnable {
		api.SetupOpsRoutes(router, m)
	}
	router.GET("/swagger/*any", m.public(api.OpsHandlerWrapper(httpswagger.WrapHandler)))
	return router
}

// SetupBookRoutes injects the liveness and books endpoints.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	register(router, m.public, []route{
		{http.MethodGet, "/", api.Index},
		{http.MethodGet, "/status", api.Status},
		{http.MethodPost, "/v1/books", api.CreateBook},
		{http.MethodGet, "/v1/books", api.GetAllBooks},
		{http.MethodGet, "/v1/books/:id", api.GetOneBook},
		{http.MethodPatch, "/v1/books/:id", api.UpdateBook},
		{http.MethodDelete, "/v1/books/:id", api.DeleteOneBook},
		{http.MethodGet, "/v1/books/:id/history", api.GetBookHistory},
	})
	return router
}

// SetupOpsRoutes injects internal operations endpoints. Profiling
// endpoints are only exposed when the profiler is enabled.
func (api *APIHandler) SetupOpsRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	routes := []route{
		{http.MethodGet, "/ops/configs", api.GetConfigs},
		{http.MethodGet, "/ops/stats", api.GetStatistics},
		{http.MethodGet, "/ops/metrics", api.GetMetrics},
		{http.MethodGet, "/ops/maintenance", api.Maintenance},
		{http.MethodGet, "/ops/debug/vars", GetMemStats},
		{http.MethodGet, "/ops/debug/gc", api.RunGC},
		{http.MethodGet, "/ops/debug/fos", api.FreeOSMemory},
	}

	if api.config.ProfilerEnable {
		routes = append(routes,
			route{http.MethodGet, "/ops/debug/pprof/", api.OpsHandlerWrapper(http.HandlerFunc(pprof.Index))},
			route{http.MethodGet, "/ops/debug/pprof/profile", api.GetCPUProfile},
			route{http.MethodGet, "/ops/debug/pprof/trace", api.GetTraceProfile},
			route{http.MethodGet, "/ops/debug/pprof/symbol", api.GetSymbol},
			route{http.MethodGet, "/ops/debug/pprof/cmdline", api.GetCmdLine},
		)
		for _, profile := range []string{"heap", "allocs", "goroutine", "threadcreate", "block", "mutex"} {
			routes = append(routes, route{http.MethodGet, "/ops/debug/pprof/" + profile, api.OpsHandlerWrapper(pprof.Handler(profile))})
		}
	}

	register(router, m.ops, routes)
	return router
}
