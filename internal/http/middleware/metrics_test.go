package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/posts/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	before := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/posts/:id", "200"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/"+id, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/posts/:id", "200")) - before; got != 2 {
		t.Fatalf("route counter delta = %v; want 2", got)
	}
	if testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "unmatched", "404")) < 1 {
		t.Fatalf("unmatched requests not counted")
	}
	if testutil.ToFloat64(httpInflight) != 0 {
		t.Fatalf("in-flight gauge not released")
	}
}
