package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-worldclock/internal/config"
)

// metrics lives in a private registry so that several servers (tests) can
// coexist in one process.
type metrics struct {
	registry  *prometheus.Registry
	updates   prometheus.Counter
	wsClients prometheus.Gauge
	requests  *prometheus.CounterVec
}

func newMetrics(extra ...prometheus.Collector) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricNamespace,
			Name:      config.MetricUpdates,
			Help:      config.HelpUpdates,
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.MetricNamespace,
			Name:      config.MetricWSClients,
			Help:      config.HelpWSClients,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricNamespace,
			Name:      config.MetricHTTPRequests,
			Help:      config.HelpHTTPRequests,
		}, []string{config.LabelRoute, config.LabelCode}),
	}
	m.registry.MustRegister(m.updates, m.wsClients, m.requests)

	for _, c := range extra {
		if err := m.registry.Register(c); err != nil {
			slog.Error(config.ErrMetricsRegister,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response code for the request counter.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route and status code.
func (m *metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}
