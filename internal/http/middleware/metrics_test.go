package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsRequestsByRouteAndStatus(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/messages", func(c *gin.Context) { c.String(http.StatusOK, "[]") })

	before := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/messages", "200"))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}

	after := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/messages", "200"))
	if after-before != 3 {
		t.Fatalf("counter delta = %v, want 3", after-before)
	}
}

func TestMetrics_UnmatchedRouteLabeledByRawPath(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())

	before := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}

	after := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))
	if after-before != 1 {
		t.Fatalf("counter delta = %v, want 1", after-before)
	}
}

func TestMetrics_InflightReturnsToBaseline(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	baseline := testutil.ToFloat64(httpInflight)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := testutil.ToFloat64(httpInflight); got != baseline {
		t.Fatalf("inflight = %v, want %v", got, baseline)
	}
}
