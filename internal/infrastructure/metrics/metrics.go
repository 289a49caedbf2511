// Package metrics exposes run outcomes as prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mohassil_migrator"

type Metrics struct {
	rows  *prometheus.CounterVec
	loans *prometheus.CounterVec
	runs  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Migrated source rows by migration and outcome",
			},
			[]string{"migration", "outcome"},
		),
		loans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settled_loans_total",
				Help:      "Loans visited by the settlement engines by outcome",
			},
			[]string{"engine", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Operator runs by action and result",
			},
			[]string{"action", "result"},
		),
	}
	reg.MustRegister(m.rows, m.loans, m.runs)
	return m
}

// ObserveRow counts one migrated row.
func (m *Metrics) ObserveRow(migration, outcome string) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(migration, outcome).Inc()
}

// ObserveRun counts one finished run; err decides the result label.
func (m *Metrics) ObserveRun(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(action, result).Inc()
}

// Loans is a per-engine view usable as a settlement observer.
type Loans struct {
	vec    *prometheus.CounterVec
	engine string
}

func (l Loans) ObserveLoan(outcome string) {
	if l.vec == nil {
		return
	}
	l.vec.WithLabelValues(l.engine, outcome).Inc()
}

func (m *Metrics) Settlement() Loans {
	if m == nil {
		return Loans{}
	}
	return Loans{vec: m.loans, engine: "transactions"}
}

func (m *Metrics) EarlySettlement() Loans {
	if m == nil {
		return Loans{}
	}
	return Loans{vec: m.loans, engine: "installments"}
}
