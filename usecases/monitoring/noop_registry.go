package monitoring

import "github.com/prometheus/client_golang/prometheus"

// NoopPrometheusRegistery is a no-op registry mainly used to disable metrics
// registery when monitoring is disabled. Tests also use it to build metrics
// repeatedly without tripping duplicate registration panics.
type NoopPrometheusRegistery struct{}

var _ prometheus.Registerer = (*NoopPrometheusRegistery)(nil)

func (n *NoopPrometheusRegistery) Register(prometheus.Collector) error {
	return nil
}

func (n *NoopPrometheusRegistery) MustRegister(...prometheus.Collector) {
}

func (n *NoopPrometheusRegistery) Unregister(prometheus.Collector) bool {
	return true
}
