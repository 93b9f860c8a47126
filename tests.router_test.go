package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyMiddlewareMap() *MiddlewareMap {
	return &MiddlewareMap{public: (&Middlewares{}).Chain, ops: (&Middlewares{}).Chain}
}

// TestSetupBookRoutes ensures all expected book endpoints are implemented.
func TestSetupBookRoutes(t *testing.T) {
	testCases := []struct {
		name        string
		request     *http.Request
		implemented bool
	}{
		{"index endpoint", httptest.NewRequest(http.MethodGet, "/", nil), true},
		{"status endpoint", httptest.NewRequest(http.MethodGet, "/status", nil), true},
		{"create book endpoint", httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(`{}`)), true},
		{"fetch all books endpoint", httptest.NewRequest(http.MethodGet, "/v1/books", nil), true},
		{"fetch single book endpoint", httptest.NewRequest(http.MethodGet, "/v1/books/1", nil), true},
		{"update book endpoint", httptest.NewRequest(http.MethodPatch, "/v1/books/1", strings.NewReader(`{"status":"x"}`)), true},
		{"delete book endpoint", httptest.NewRequest(http.MethodDelete, "/v1/books/1", nil), true},
		{"book history endpoint", httptest.NewRequest(http.MethodGet, "/v1/books/1/history", nil), true},
		{"invalid api endpoint", httptest.NewRequest(http.MethodGet, "/v1", nil), false},
		{"invalid books endpoint", httptest.NewRequest(http.MethodGet, "/books", nil), false},
	}

	// book 1 exists so that its endpoints answer with something else than 404.
	api, bs := newTestBookAPI()
	_, err := bs.Create(context.Background(), validInput())
	require.NoError(t, err)
	router := httprouter.New()
	api.SetupBookRoutes(router, emptyMiddlewareMap())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tc.request)
			if tc.implemented {
				assert.NotEqual(t, http.StatusNotFound, w.Code)
			} else {
				assert.Equal(t, http.StatusNotFound, w.Code)
			}
		})
	}
}

// TestSetupOpsRoutes ensures all expected operations endpoints are implemented.
func TestSetupOpsRoutes(t *testing.T) {
	testCases := []struct {
		path   string
		status int
	}{
		{"/ops/configs", http.StatusOK},
		{"/ops/stats", http.StatusOK},
		{"/ops/metrics", http.StatusOK},
		{"/ops/maintenance?status=disable", http.StatusOK},
		{"/ops/debug/vars", http.StatusOK},
		{"/ops/debug/gc", http.StatusOK},
		{"/ops/debug/fos", http.StatusOK},
		{"/ops/debug/pprof/heap", http.StatusNotFound},
	}

	api, _ := newTestBookAPI()
	router := httprouter.New()
	api.SetupOpsRoutes(router, emptyMiddlewareMap())

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}

	t.Run("profiler enabled", func(t *testing.T) {
		api, _ := newTestBookAPI()
		api.config.ProfilerEnable = true
		router := httprouter.New()
		api.SetupOpsRoutes(router, emptyMiddlewareMap())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/debug/pprof/cmdline", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// TestSetupRoutes ensures ops endpoints are only exposed when enabled
// and unknown paths get a json not found response.
func TestSetupRoutes(t *testing.T) {
	t.Run("ops disabled", func(t *testing.T) {
		api, _ := newTestBookAPI()
		router := api.SetupRoutes(httprouter.New(), emptyMiddlewareMap())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "application/json; charset=UTF-8", w.Header().Get("Content-Type"))
		data, err := io.ReadAll(w.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"requestid":"", "status":404, "message":"the requested resource does not exist", "data":{}}`, string(data))
	})

	t.Run("ops enabled", func(t *testing.T) {
		api, _ := newTestBookAPI()
		api.config.OpsEndpointsEnable = true
		router := api.SetupRoutes(httprouter.New(), emptyMiddlewareMap())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("swagger docs", func(t *testing.T) {
		api, _ := newTestBookAPI()
		router := api.SetupRoutes(httprouter.New(), emptyMiddlewareMap())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/v1/books")
	})
}

// TestRoutesWithMiddlewares runs a full create then fetch through both stacks.
func TestRoutesWithMiddlewares(t *testing.T) {
	api, _ := newTestBookAPI()
	// requests come without id so one gets generated.
	api.ids = NewMockUIDHandler("id", false)
	api.config.OpsEndpointsEnable = true
	public, ops := api.MiddlewaresStacks()
	router := api.SetupRoutes(httprouter.New(), &MiddlewareMap{public: public.Chain, ops: ops.Chain})

	payload := `{"name":"Dune", "author":"Frank Herbert", "year_published":1965, "book_type":"Novel"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(payload)))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "r:id", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), `"requestid":"r:id"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/books/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `books_http_requests_total{code="201"} 1`)
}
