package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDiagonalization()
		m.ObserveRun("fused", time.Millisecond)
	})
}

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ObserveDiagonalization()
	m.ObserveDiagonalization()
	m.ObserveRun("reference", 2*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Diagonalizations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("reference")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Runs.WithLabelValues("fused")))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}
