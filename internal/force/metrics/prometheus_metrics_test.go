package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pageforce/internal/force"
)

func TestCollector_ImplementsForceMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	var _ force.Metrics = NewCollectorWithRegistry("pageforce", registry, zap.NewNop())
}

func TestCollector_Recording(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("pageforce", registry, zap.NewNop())

	c.CycleStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cycleRunning))

	c.PageRendered()
	c.PageRendered()
	c.Progress(67)
	c.DuplicateEvent()
	c.ViewFault()
	c.WatchdogReforce()

	c.CycleFinished(force.OutcomeCompleted, 3*time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(c.cycleRunning))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pagesRendered))
	assert.Equal(t, 67.0, testutil.ToFloat64(c.progressPercent))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.duplicateEvents))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cyclesTotal.WithLabelValues(force.OutcomeCompleted)))
}

func TestCollector_DurationOnlyObservedForCompleted(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("pageforce", registry, zap.NewNop())

	c.CycleFinished(force.OutcomeSkipped, 0)
	c.CycleFinished(force.OutcomeCapacity, 0)
	c.CycleFinished(force.OutcomeCompleted, time.Second)

	families, err := registry.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "pageforce_force_cycle_duration_seconds" {
			continue
		}
		assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		return
	}
	t.Fatal("cycle duration histogram not gathered")
}

func TestCollector_HTTPEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry("pageforce", registry, zap.NewNop())

	c.CycleStarted()
	c.PageRendered()

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod("GET")

	c.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/plain")

	body := string(ctx.Response.Body())
	assert.Contains(t, body, "pageforce_force_cycle_running")
	assert.Contains(t, body, "pageforce_force_pages_rendered_total")
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
}
