package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Collector is the Prometheus-backed implementation of the force package's
// observability surface. It also serves the scrape endpoint.
type Collector struct {
	// Cycle metrics
	cycleRunning  prometheus.Gauge
	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram

	// Page metrics
	pagesRendered   prometheus.Counter
	progressPercent prometheus.Gauge

	// Anomaly metrics
	duplicateEvents  prometheus.Counter
	viewFaults       prometheus.Counter
	watchdogReforces prometheus.Counter

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewCollector creates a Collector registered on the default registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry creates a Collector registered on a custom
// registry. Tests use this to avoid duplicate registration panics.
func NewCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger,
	}

	c.cycleRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "cycle_running",
		Help:      "Whether a forced rendering cycle is currently running (0 or 1)",
	})

	c.cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "cycles_total",
		Help:      "Total forced rendering cycles by outcome",
	}, []string{"outcome"}) // outcome: completed, aborted, capacity, skipped

	c.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "cycle_duration_seconds",
		Help:      "Time from cycle start to the document-rendered signal",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
	})

	c.pagesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "pages_rendered_total",
		Help:      "Total pages whose text layer completed during a cycle",
	})

	c.progressPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "progress_percent",
		Help:      "Completion percentage of the current cycle",
	})

	c.duplicateEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "duplicate_events_total",
		Help:      "Total page-rendered events for already completed pages",
	})

	c.viewFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "view_faults_total",
		Help:      "Total page views the viewer failed to produce",
	})

	c.watchdogReforces = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "force",
		Name:      "watchdog_reforces_total",
		Help:      "Total render requests re-issued for paused pages",
	})

	registerer.MustRegister(
		c.cycleRunning,
		c.cyclesTotal,
		c.cycleDuration,
		c.pagesRendered,
		c.progressPercent,
		c.duplicateEvents,
		c.viewFaults,
		c.watchdogReforces,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	c.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Info("Prometheus metrics initialized")
	return c
}

// CycleStarted marks a cycle as running and resets the progress gauge.
func (c *Collector) CycleStarted() {
	c.cycleRunning.Set(1)
	c.progressPercent.Set(0)
}

// CycleFinished records the terminal transition. Duration is only observed
// for completed cycles; skipped and capacity cycles never ran.
func (c *Collector) CycleFinished(outcome string, elapsed time.Duration) {
	c.cycleRunning.Set(0)
	c.cyclesTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		c.cycleDuration.Observe(elapsed.Seconds())
	}
}

// PageRendered counts one newly completed page.
func (c *Collector) PageRendered() {
	c.pagesRendered.Inc()
}

// Progress updates the completion percentage gauge.
func (c *Collector) Progress(pct int) {
	c.progressPercent.Set(float64(pct))
}

// DuplicateEvent counts a page-rendered event for an already completed page.
func (c *Collector) DuplicateEvent() {
	c.duplicateEvents.Inc()
}

// ViewFault counts a page view the viewer failed to produce.
func (c *Collector) ViewFault() {
	c.viewFaults.Inc()
}

// WatchdogReforce counts a re-issued render request for a paused page.
func (c *Collector) WatchdogReforce() {
	c.watchdogReforces.Inc()
}

// ServeHTTP serves Prometheus metrics via HTTP.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.httpHandler(ctx)
}
