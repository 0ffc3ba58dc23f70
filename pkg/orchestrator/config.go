package orchestrator

import (
	"math"
	"strings"
	"time"

	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/search"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// Config holds the orchestration tunables shared by every domain worker and the router.
type Config struct {
	Alpha float64
	Beta  float64

	SampleSize      int
	SeedCount       int
	ExpansionMode   string
	FanoutLimit     int
	ShortlistSize   int
	SynthesisTopN   int
	DefaultLimit    int
	ExcludedClasses []string

	PerCallTimeout time.Duration
	QueryTimeout   time.Duration
}

// DefaultConfig returns the orchestration defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:           0.7,
		Beta:            0.3,
		SampleSize:      3,
		SeedCount:       5,
		ExpansionMode:   search.ModeRNE,
		FanoutLimit:     2,
		ShortlistSize:   5,
		SynthesisTopN:   10,
		DefaultLimit:    10,
		ExcludedClasses: search.DefaultAdministrativeClasses,
		PerCallTimeout:  15 * time.Second,
		QueryTimeout:    45 * time.Second,
	}
}

// FromRetrieval maps the retrieval section of the process configuration.
func FromRetrieval(r config.RetrievalConfig) Config {
	c := DefaultConfig()
	c.Alpha = r.Alpha
	c.Beta = r.Beta
	if r.SampleSize > 0 {
		c.SampleSize = r.SampleSize
	}
	if r.SeedCount > 0 {
		c.SeedCount = r.SeedCount
	}
	if r.ExpansionMode != "" {
		c.ExpansionMode = strings.ToLower(r.ExpansionMode)
	}
	c.FanoutLimit = r.FanoutLimit
	if r.ShortlistSize > 0 {
		c.ShortlistSize = r.ShortlistSize
	}
	if r.SynthesisTopN > 0 {
		c.SynthesisTopN = r.SynthesisTopN
	}
	if r.DefaultLimit > 0 {
		c.DefaultLimit = r.DefaultLimit
	}
	if r.ExcludedClasses != nil {
		c.ExcludedClasses = r.ExcludedClasses
	}
	if r.PerCallTimeout > 0 {
		c.PerCallTimeout = r.PerCallTimeout
	}
	if r.QueryTimeout > 0 {
		c.QueryTimeout = r.QueryTimeout
	}
	return c
}

// Validate checks the score weights and fan-out bound.
func (c Config) Validate() error {
	if c.Alpha < 0 || c.Beta < 0 || math.Abs(c.Alpha+c.Beta-1) > 1e-9 {
		return types.NewConfigurationError("retrieval.alpha", "alpha (%v) and beta (%v) must be non-negative and sum to 1", c.Alpha, c.Beta)
	}
	if c.FanoutLimit < 0 || c.FanoutLimit > 2 {
		return types.NewConfigurationError("retrieval.fanout_limit", "must be within [0,2], got %d", c.FanoutLimit)
	}
	switch c.ExpansionMode {
	case search.ModeRNE, search.ModeINE, search.ModeNone:
	default:
		return types.NewConfigurationError("retrieval.expansion_mode", "unknown mode %q", c.ExpansionMode)
	}
	return nil
}

// CombinedScore blends a domain's self-assessed confidence with its centroid similarity.
func (c Config) CombinedScore(confidence, similarity float64) float64 {
	return c.Alpha*types.ClampUnit(confidence) + c.Beta*types.ClampUnit(similarity)
}
