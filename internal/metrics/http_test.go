package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"method and static path", "GET /api/posts", "/api/posts"},
		{"method and wildcard", "DELETE /api/posts/comment/{id}/{comment_id}", "/api/posts/comment/{id}/{comment_id}"},
		{"path only", "/api/profile", "/api/profile"},
		{"host qualified", "GET example.com/api/auth", "/api/auth"},
		{"unmatched", "", unmatchedRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestHTTPMiddleware_LabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := HTTPMiddleware(CaptureRoute(mux))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/{id}", "418"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/posts/{id}", "418"))
	require.Equal(t, 3.0, after-before)
}

func TestHTTPMiddleware_Unmatched(t *testing.T) {
	handler := HTTPMiddleware(CaptureRoute(http.NewServeMux()))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/12345", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))-before)
}

func TestHTTPMiddleware_WithoutCapture(t *testing.T) {
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0.0, testutil.ToFloat64(HTTPRequestsInFlight))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	content := []byte("Hello, World!")
	_, _ = rw.Write(content)
	rw.WriteHeader(http.StatusInternalServerError)

	require.Equal(t, http.StatusOK, rw.statusCode)
	require.Equal(t, len(content), rw.bytesWritten)
	require.Same(t, rec, rw.Unwrap())
}

func TestCaptureRoute_RenamesSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/posts/like/{id}", func(w http.ResponseWriter, r *http.Request) {})

	ctx, span := tp.Tracer("test").Start(context.Background(), "PUT /api/posts/like/01ABC")
	req := httptest.NewRequest(http.MethodPut, "/api/posts/like/01ABC", nil).WithContext(ctx)
	CaptureRoute(mux).ServeHTTP(httptest.NewRecorder(), req)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "PUT /api/posts/like/{id}", spans[0].Name)
}
