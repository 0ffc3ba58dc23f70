package alert

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestBreakerSettingsTripAndAlert(t *testing.T) {
	rec := &RecordingAlerter{}
	cfg := config.CircuitBreakerConfig{MaxRequests: 1, Interval: 60, Timeout: 60, ReadyToTripRatio: 0.5}
	cb := gobreaker.NewCircuitBreaker(BreakerSettings("judge", cfg, rec, nil, nil))

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, boom })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State(), "below the minimum request count")

	_, _ = cb.Execute(func() (any, error) { return nil, boom })
	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Eventually(t, func() bool { return rec.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBreakerSettingsSuccessFunc(t *testing.T) {
	cfg := config.CircuitBreakerConfig{MaxRequests: 1, Interval: 60, Timeout: 60, ReadyToTripRatio: 0.1}
	benign := errors.New("refused")
	cb := gobreaker.NewCircuitBreaker(BreakerSettings("judge", cfg, nil, nil, func(err error) bool {
		return err == nil || errors.Is(err, benign)
	}))

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, benign })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
