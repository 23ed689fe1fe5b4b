package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
	gatherer  prometheus.Gatherer
}

// NewPrometheusRecorder registers the checkout collectors on reg. A nil reg
// gets a fresh private registry so repeated construction never panics.
func NewPrometheusRecorder(namespace string, reg *prometheus.Registry) (*PrometheusRecorder, error) {
	if namespace == "" {
		namespace = "checkout"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Checkout payment events",
		},
		[]string{"type", "network"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Checkout operation latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation", "network"},
	)

	for _, c := range []prometheus.Collector{counters, histogram} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
		gatherer:  reg,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":    name,
		"network": labels["network"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"network":   labels["network"],
	}).Observe(d.Seconds())
}

// Handler exposes the recorder's registry in the text exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
