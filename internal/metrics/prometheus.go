package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// promMirror はRegistryの値をPrometheus形式でも公開する
type promMirror struct {
	registry *prometheus.Registry
	rates    *prometheus.CounterVec
	trends   *prometheus.HistogramVec
	counters *prometheus.CounterVec
}

func newPromMirror(namespace string) *promMirror {
	m := &promMirror{
		registry: prometheus.NewRegistry(),
		rates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_samples_total",
				Help:      "Boolean samples recorded into rate metrics",
			},
			[]string{"metric", "outcome"},
		),
		trends: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trend_milliseconds",
				Help:      "Values recorded into trend metrics, in milliseconds",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000},
			},
			[]string{"metric"},
		),
		counters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "counter_total",
				Help:      "Values added to counter metrics",
			},
			[]string{"metric", "tag"},
		),
	}

	m.registry.MustRegister(
		m.rates,
		m.trends,
		m.counters,
		collectors.NewGoCollector(),
	)
	return m
}
