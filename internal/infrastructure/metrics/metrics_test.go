package metrics

import (
	"errors"
	"testing"

	"mohassil-migrator/internal/usecase/earlysettle"
	"mohassil-migrator/internal/usecase/migrate"
	"mohassil-migrator/internal/usecase/settlement"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var (
	_ migrate.Observer     = (*Metrics)(nil)
	_ settlement.Observer  = Loans{}
	_ earlysettle.Observer = Loans{}
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRow("clients", "inserted")
	m.ObserveRow("clients", "inserted")
	m.ObserveRow("clients", "skipped")
	m.Settlement().ObserveLoan("settled")
	m.EarlySettlement().ObserveLoan("failed")
	m.ObserveRun("run", nil)
	m.ObserveRun("run", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("clients", "inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("clients", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loans.WithLabelValues("transactions", "settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loans.WithLabelValues("installments", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("run", "error")))

	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRow("clients", "inserted")
	m.ObserveRun("run", nil)
	m.Settlement().ObserveLoan("settled")
}
