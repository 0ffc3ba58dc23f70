package alert

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/lexigraph/pkg/config"
)

// minTripRequests keeps a single early failure from opening a breaker.
const minTripRequests = 3

// BreakerSettings builds gobreaker settings from configuration. The breaker trips
// once the failure ratio reaches cfg.ReadyToTripRatio and notifies alerter when it
// opens. A nil success func counts only nil errors as successes.
func BreakerSettings(name string, cfg config.CircuitBreakerConfig, alerter Alerter, logger *slog.Logger, success func(error) bool) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minTripRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			NotifyStateChange(alerter, logger, name, from.String(), to.String(), to == gobreaker.StateOpen)
		},
		IsSuccessful: success,
	}
}
