//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics holds the meters of the mass indexing pipeline. A nil
// receiver is valid on every method, so callers never need to guard for
// disabled monitoring.
type PrometheusMetrics struct {
	MassIndexingTotal    *prometheus.GaugeVec
	MassIndexingLoaded   *prometheus.CounterVec
	MassIndexingIndexed  *prometheus.CounterVec
	MassIndexingFailures *prometheus.CounterVec
	MassIndexingRuns     *prometheus.CounterVec
	MassIndexingDuration *prometheus.HistogramVec

	MonitoringConnections prometheus.Gauge
}

// NewPrometheusMetrics registers all pipeline meters on the given
// registerer. Pass nil to use the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	pm := &PrometheusMetrics{
		MassIndexingTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "syndex_mass_indexing_entities_total",
			Help: "Number of entities the current run is expected to index, per type group.",
		}, []string{"group"}),
		MassIndexingLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syndex_mass_indexing_entities_loaded_total",
			Help: "Entities loaded from the object store, per type group.",
		}, []string{"group"}),
		MassIndexingIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syndex_mass_indexing_documents_indexed_total",
			Help: "Documents accepted by the index writers, per type group.",
		}, []string{"group"}),
		MassIndexingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syndex_mass_indexing_failures_total",
			Help: "Failures observed during mass indexing, per type group and kind.",
		}, []string{"group", "kind"}),
		MassIndexingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syndex_mass_indexing_runs_total",
			Help: "Finished mass indexing runs by terminal state.",
		}, []string{"status"}),
		MassIndexingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "syndex_mass_indexing_run_duration_seconds",
			Help:    "Wall clock duration of mass indexing runs by terminal state.",
			Buckets: []float64{1, 5, 30, 60, 300, 1800, 3600, 14400},
		}, []string{"status"}),
		MonitoringConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "syndex_monitoring_open_connections",
			Help: "Open connections to the metrics endpoint.",
		}),
	}

	reg.MustRegister(
		pm.MassIndexingTotal,
		pm.MassIndexingLoaded,
		pm.MassIndexingIndexed,
		pm.MassIndexingFailures,
		pm.MassIndexingRuns,
		pm.MassIndexingDuration,
		pm.MonitoringConnections,
	)

	return pm
}

func (pm *PrometheusMetrics) AddToTotal(group string, count int64) {
	if pm == nil {
		return
	}

	pm.MassIndexingTotal.WithLabelValues(group).Add(float64(count))
}

func (pm *PrometheusMetrics) EntitiesLoaded(group string, count int64) {
	if pm == nil {
		return
	}

	pm.MassIndexingLoaded.WithLabelValues(group).Add(float64(count))
}

func (pm *PrometheusMetrics) DocumentsIndexed(group string, count int64) {
	if pm == nil {
		return
	}

	pm.MassIndexingIndexed.WithLabelValues(group).Add(float64(count))
}

func (pm *PrometheusMetrics) ItemFailure(group string) {
	if pm == nil {
		return
	}

	pm.MassIndexingFailures.WithLabelValues(group, "item").Inc()
}

func (pm *PrometheusMetrics) FatalFailure(group string) {
	if pm == nil {
		return
	}

	pm.MassIndexingFailures.WithLabelValues(group, "fatal").Inc()
}

func (pm *PrometheusMetrics) ObserveRun(status string, elapsed time.Duration) {
	if pm == nil {
		return
	}

	pm.MassIndexingRuns.WithLabelValues(status).Inc()
	pm.MassIndexingDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
