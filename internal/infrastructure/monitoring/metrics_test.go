package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordInvocation("search", OutcomeSuccess, time.Millisecond)
		m.RecordHostRequest("GET", "2xx", time.Millisecond)
		m.RecordChallenge("solved")
		m.RecordGuestLog("info")
		m.RecordModuleLoad(OutcomeSuccess)
		m.SetModulesActive(3)
		m.IncWSConnections()
		m.DecWSConnections()
		m.RecordWSMessage("in", "solved")
		NewTimer(m, "info").Stop("guest_threw")
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestRecordInvocation(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordInvocation("search", OutcomeSuccess, 10*time.Millisecond)
	m.RecordInvocation("search", "schema_mismatch", 5*time.Millisecond)
	m.RecordInvocation("info", OutcomeSuccess, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Invocations.WithLabelValues("search", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Invocations.WithLabelValues("search", "schema_mismatch")))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalInvocations)
	assert.Equal(t, int64(1), snap.FailedInvocations)
}

func TestModulesActive(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetModulesActive(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ModulesActive))
	assert.Equal(t, int64(2), m.Snapshot().ActiveModules)
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		0:   "other",
		999: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code), code)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/modules/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/modules/"+id, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Both requests share the route template label
	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/modules/:id", "200")))
}
