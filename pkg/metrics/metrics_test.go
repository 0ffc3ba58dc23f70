package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
	assert.False(t, prometheus.DefaultRegisterer.Unregister(prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total"})))
}

func TestCountersRecord(t *testing.T) {
	before := testutil.ToFloat64(StageResultsTotal.WithLabelValues("exact"))
	StageResultsTotal.WithLabelValues("exact").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(StageResultsTotal.WithLabelValues("exact")))
}
