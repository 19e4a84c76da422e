package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.IncCounter("settlement", nil)
		r.ObserveLatency("settle", time.Second, map[string]string{LabelMode: "direct"})
	})
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	labels := map[string]string{LabelMode: "direct", LabelOutcome: "ok"}
	rec.IncCounter("settlement", labels)
	rec.IncCounter("settlement", labels)
	rec.IncCounter("settlement", map[string]string{LabelMode: "batch", LabelOutcome: "error"})
	rec.ObserveLatency("settle", 250*time.Millisecond, labels)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				key := mf.GetName()
				for _, lp := range m.GetLabel() {
					key += "," + lp.GetName() + "=" + lp.GetValue()
				}
				byName[key] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				byName[mf.GetName()+"_count"] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 2.0, byName["payroute_events_total,mode=direct,outcome=ok,type=settlement"])
	assert.Equal(t, 1.0, byName["payroute_events_total,mode=batch,outcome=error,type=settlement"])
	assert.Equal(t, 1.0, byName["payroute_latency_seconds_count"])
}

func TestPrometheusRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
