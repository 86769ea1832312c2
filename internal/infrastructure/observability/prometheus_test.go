package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counter(t *testing.T) {
	p := NewPrometheus("microscope")

	p.Incr("notify.events", map[string]string{"type": "STATUS_CHANGED", "status": "DOWN"})
	p.Incr("notify.events", map[string]string{"type": "STATUS_CHANGED", "status": "DOWN"})
	p.Add("notify.reminders", 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.counters["notify.events"].WithLabelValues("DOWN", "STATUS_CHANGED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.counters["notify.reminders"].WithLabelValues()))
}

func TestPrometheus_MismatchedTagsAreDropped(t *testing.T) {
	p := NewPrometheus("microscope")

	p.Incr("registry.events", map[string]string{"type": "a"})
	p.Incr("registry.events", map[string]string{"other": "b"})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters["registry.events"].WithLabelValues("a")))
}

func TestPrometheus_GaugeAndHistogram(t *testing.T) {
	p := NewPrometheus("microscope")

	p.Set("registry.applications", 4, nil)
	p.Observe("http.request.duration", 0.25, map[string]string{"route": "/health"})

	assert.Equal(t, 4.0, testutil.ToFloat64(p.gauges["registry.applications"].WithLabelValues()))
	assert.Equal(t, 1, testutil.CollectAndCount(p.histograms["http.request.duration"]))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus("microscope")
	p.Incr("notify.events", map[string]string{"type": "DEREGISTERED"})

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `microscope_notify_events_total{type="DEREGISTERED"} 1`))
}

func TestNoop(t *testing.T) {
	var m Metrics = Noop{}

	m.Incr("x", nil)
	m.Add("x", 1, nil)
	m.Set("x", 1, nil)
	m.Observe("x", 1, nil)
}
