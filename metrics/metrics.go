// Package metrics exports pipeline activity to prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/airchains-network/txpipe/pipeline"
)

const (
	metricsNamespace = "txpipe"
	metricsSubsystem = "pipeline"
)

// Collector is a pipeline observer feeding prometheus
type Collector struct {
	transitions  *prometheus.CounterVec
	gasUsed      *prometheus.CounterVec
	confirmation *prometheus.HistogramVec

	mu        sync.Mutex
	submitted map[common.Hash]time.Time
}

// NewCollector registers the pipeline metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "transitions_total",
				Help:      "Transactions entering each state",
			},
			[]string{"kind", "state"},
		),
		gasUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "gas_used_total",
				Help:      "Gas used by included transactions",
			},
			[]string{"kind"},
		),
		confirmation: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "confirmation_seconds",
				Help:      "Time from submission to an included receipt",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind", "status"},
		),
		submitted: make(map[common.Hash]time.Time),
	}
}

func (c *Collector) Observe(e pipeline.Event) {
	kind := e.Kind.String()
	c.transitions.WithLabelValues(kind, e.State.String()).Inc()

	switch e.State {
	case pipeline.StateSubmitted:
		c.mu.Lock()
		c.submitted[e.Hash] = e.At
		c.mu.Unlock()
	case pipeline.StateConfirmed, pipeline.StateReverted:
		if e.Receipt != nil {
			c.gasUsed.WithLabelValues(kind).Add(float64(e.Receipt.GasUsed))
		}
		c.mu.Lock()
		start, ok := c.submitted[e.Hash]
		delete(c.submitted, e.Hash)
		c.mu.Unlock()
		if ok {
			c.confirmation.WithLabelValues(kind, e.State.String()).Observe(e.At.Sub(start).Seconds())
		}
	}
}
