// Package metrics exposes the process's Prometheus gauges/counters,
// grounded on the teacher's internal/observability context-metrics shape
// (NewXWithRegisterer over a testable *prometheus.Registry, labeled
// gauges/counters, WithLabelValues call sites).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Memory tracks the C9/C10/C11 write and maintenance paths.
type Memory struct {
	writesTotal      *prometheus.CounterVec
	reinforceTotal   prometheus.Counter
	consolidateTotal *prometheus.CounterVec
	decayedTotal     prometheus.Counter
	queueDepth       prometheus.Gauge
}

// NewMemory registers the memory-core metric set against the default
// registerer.
func NewMemory() *Memory {
	return NewMemoryWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMemoryWithRegisterer registers against an explicit registerer, the way
// the teacher's tests isolate a fresh *prometheus.Registry per case.
func NewMemoryWithRegisterer(reg prometheus.Registerer) *Memory {
	m := &Memory{
		writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_core_writes_total",
			Help: "Count of LTM writes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		reinforceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_core_reinforcements_total",
			Help: "Count of factual rows reinforced instead of inserted.",
		}),
		consolidateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_core_consolidations_total",
			Help: "Count of consolidation actions by level and outcome.",
		}, []string{"level", "outcome"}),
		decayedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_core_episodic_decayed_total",
			Help: "Count of episodic rows deleted for expiry.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_core_background_queue_depth",
			Help: "Current depth of the background job queue.",
		}),
	}
	reg.MustRegister(m.writesTotal, m.reinforceTotal, m.consolidateTotal, m.decayedTotal, m.queueDepth)
	return m
}

func (m *Memory) RecordWrite(kind, outcome string) { m.writesTotal.WithLabelValues(kind, outcome).Inc() }
func (m *Memory) RecordReinforcement()             { m.reinforceTotal.Inc() }
func (m *Memory) RecordConsolidation(level, outcome string) {
	m.consolidateTotal.WithLabelValues(level, outcome).Inc()
}
func (m *Memory) RecordDecayed(n int64)      { m.decayedTotal.Add(float64(n)) }
func (m *Memory) SetQueueDepth(depth int)    { m.queueDepth.Set(float64(depth)) }
