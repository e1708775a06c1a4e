// AngelaMos | 2026
// metrics_test.go

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tfgs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tfgs/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(
		m.requests.WithLabelValues(http.MethodGet, "/tfgs/{id}", "418"),
	))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveStorage("pinata", "upload", time.Now(), nil)
	m.ObserveStorage("pinata", "upload", time.Now(), errors.New("boom"))
	m.MailSent("validation", nil)
	m.TFGEvent("view")
	m.TFGEvent("view")
	m.SetBreakerState("pinata", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageOps.WithLabelValues("pinata", "upload", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageOps.WithLabelValues("pinata", "upload", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mailSent.WithLabelValues("validation", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tfgEvents.WithLabelValues("view")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("pinata")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStorage("s3", "delete", time.Now(), nil)
		m.MailSent("recover", nil)
		m.TFGEvent("download")
		m.SetBreakerState("pinata", 0)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.TFGEvent("upload")

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tfg_registry_tfg_events_total{event="upload"} 1`)
}
