package executor

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeTrap  = "trap"
	outcomeError = "error"
)

type metrics struct {
	invocations *prometheus.CounterVec
	gasConsumed prometheus.Counter
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aot",
			Subsystem: "executor",
			Name:      "invocations_total",
			Help:      "Invocations of compiled entry points by outcome (ok, trap, error).",
		}, []string{"outcome"}),
		gasConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aot",
			Subsystem: "executor",
			Name:      "gas_consumed",
			Help:      "Gas consumed by completed invocations.",
		}),
	}
	if r == nil {
		return m, nil
	}

	var err error
	if m.invocations, err = register(r, m.invocations); err != nil {
		return nil, err
	}
	if m.gasConsumed, err = register(r, m.gasConsumed); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to r, reusing a collector registered by an earlier
// executor.
func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("executor: register metrics: %w", err)
	}
	return c, nil
}

func (m *metrics) observe(outcome string, gas uint64) {
	m.invocations.WithLabelValues(outcome).Inc()
	if gas > 0 {
		m.gasConsumed.Add(float64(gas))
	}
}
