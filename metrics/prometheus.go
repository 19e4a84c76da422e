package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports counters and latency histograms under the
// "payroute" namespace.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers its collectors on reg.
// A nil reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroute",
			Name:      "events_total",
			Help:      "payroute event counters",
		},
		[]string{"type", LabelMode, LabelOutcome},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payroute",
			Name:      "latency_seconds",
			Help:      "payroute operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", LabelMode, LabelOutcome},
	)

	if err := reg.Register(counters); err != nil {
		return nil, err
	}
	if err := reg.Register(histogram); err != nil {
		reg.Unregister(counters)
		return nil, err
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":       name,
		LabelMode:    labels[LabelMode],
		LabelOutcome: labels[LabelOutcome],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation":  name,
		LabelMode:    labels[LabelMode],
		LabelOutcome: labels[LabelOutcome],
	}).Observe(d.Seconds())
}
