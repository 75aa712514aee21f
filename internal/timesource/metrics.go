package timesource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tartampluch/go-worldclock/internal/config"
)

type driftCollector struct {
	monitor *Monitor

	offsetSeconds   *prometheus.Desc
	lastSyncSeconds *prometheus.Desc
	healthy         *prometheus.Desc
}

// Collector exposes the drift measurement as Prometheus gauges.
func (m *Monitor) Collector() prometheus.Collector {
	return &driftCollector{
		monitor:         m,
		offsetSeconds:   prometheus.NewDesc(config.MetricNTPOffset, config.HelpNTPOffset, nil, nil),
		lastSyncSeconds: prometheus.NewDesc(config.MetricNTPLastSync, config.HelpNTPLastSync, nil, nil),
		healthy:         prometheus.NewDesc(config.MetricNTPHealthy, config.HelpNTPHealthy, nil, nil),
	}
}

func (dc *driftCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- dc.offsetSeconds
	ch <- dc.lastSyncSeconds
	ch <- dc.healthy
}

func (dc *driftCollector) Collect(ch chan<- prometheus.Metric) {
	ok, offset, lastSync, _ := dc.monitor.Health()

	var last float64
	if !lastSync.IsZero() {
		last = float64(lastSync.Unix())
	}
	var healthy float64
	if ok {
		healthy = 1
	}

	ch <- prometheus.MustNewConstMetric(dc.offsetSeconds, prometheus.GaugeValue, offset.Seconds())
	ch <- prometheus.MustNewConstMetric(dc.lastSyncSeconds, prometheus.GaugeValue, last)
	ch <- prometheus.MustNewConstMetric(dc.healthy, prometheus.GaugeValue, healthy)
}
