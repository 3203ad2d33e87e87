package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(previous)
	})

	return sr
}

func tracedRouter(handler gin.HandlerFunc, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), TracingWithConfig(TracingConfig{ServiceName: "test-service", Enabled: true}), SpanErrorMarker())
	router.Use(extra...)
	router.GET("/invoices/:id", handler)
	return router
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracing_RecordsServerSpanWithRequestID(t *testing.T) {
	sr := setupTestTracer(t)
	router := tracedRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/invoices/123", nil)
	req.Header.Set(RequestIDHeader, "req-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "req-abc", attrs["request_id"].AsString())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_AddsUserID(t *testing.T) {
	sr := setupTestTracer(t)
	authenticate := func(c *gin.Context) {
		c.Set(JWTUserIDKey, "user-7")
		c.Next()
	}
	router := tracedRouter(func(c *gin.Context) { c.Status(http.StatusOK) }, authenticate)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/1", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "user-7", spanAttributes(spans[0])["user_id"].AsString())
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		status  int
		isError bool
		message string
	}{
		{http.StatusOK, false, ""},
		{http.StatusUnprocessableEntity, true, "Client Error"},
		{http.StatusUnauthorized, true, "Unauthorized"},
		{http.StatusForbidden, true, "Forbidden"},
		{http.StatusNotFound, true, "Not Found"},
		{http.StatusInternalServerError, true, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)
			router := tracedRouter(func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoices/1", nil))

			spans := sr.Ended()
			require.Len(t, spans, 1)
			if !tt.isError {
				assert.NotEqual(t, codes.Error, spans[0].Status().Code)
				return
			}
			assert.Equal(t, codes.Error, spans[0].Status().Code)
			if tt.status < http.StatusInternalServerError {
				// otelgin sets its own status on 5xx
				assert.Equal(t, tt.message, spans[0].Status().Description)
			}
		})
	}
}

func TestSpanErrorMarker_WithNoSpan(t *testing.T) {
	router := gin.New()
	router.Use(SpanErrorMarker())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
