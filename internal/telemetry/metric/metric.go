package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/simvault-go/internal/storage"
)

const namespace = "simvault"

// Metrics is a storage.Sink that records save and load outcomes in a
// prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	savesTotal   *prometheus.CounterVec
	loadsTotal   *prometheus.CounterVec
	saveDuration prometheus.Histogram
	dirtyModules prometheus.Histogram
	lastSaveTick prometheus.Gauge
}

var _ storage.Sink = (*Metrics)(nil)

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		savesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save transactions by outcome.",
		}, []string{"outcome"}),
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Load attempts by recovery tier.",
		}, []string{"tier"}),
		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Wall time of save transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		dirtyModules: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_dirty_modules",
			Help:      "Dirty providers per save transaction.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		lastSaveTick: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_save_tick",
			Help:      "Simulation tick of the most recent committed save.",
		}),
	}
}

// SaveFinished implements storage.Sink.
func (m *Metrics) SaveFinished(res storage.SaveResult) {
	outcome := "committed"
	if !res.Committed {
		outcome = "failed"
	}
	m.savesTotal.WithLabelValues(outcome).Inc()
	m.saveDuration.Observe(res.Duration.Seconds())
	m.dirtyModules.Observe(float64(res.Dirty))
	if res.Committed {
		m.lastSaveTick.Set(float64(res.Tick))
	}
}

// LoadFinished implements storage.Sink.
func (m *Metrics) LoadFinished(res storage.LoadResult) {
	m.loadsTotal.WithLabelValues(res.Tier.String()).Inc()
}

// Registry returns the underlying registry for additional registrations.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the HTTP handler serving this registry in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
