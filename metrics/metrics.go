// Package metrics records settlement counters and latencies.
package metrics

import "time"

// Label keys understood by the recorders.
const (
	LabelMode    = "mode"
	LabelOutcome = "outcome"
)

// Recorder receives counter increments and latency observations.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
