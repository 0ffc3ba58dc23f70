// Package config loads lexigraph configuration from files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Judgment       ModelConfig          `mapstructure:"judgment"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	Registry       RegistryConfig       `mapstructure:"registry"`
	A2A            A2AConfig            `mapstructure:"a2a"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	Alert          AlertConfig          `mapstructure:"alert"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // color, text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds graph store configuration
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"` // neo4j, memory
	URI           string `mapstructure:"uri"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	FixturePath   string `mapstructure:"fixture_path"` // YAML snapshot for the memory driver
	ContentIndex  string `mapstructure:"content_index"`
	RelationIndex string `mapstructure:"relation_index"`
}

// ModelConfig describes one remote model endpoint.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // openai or any OpenAI-compatible service
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Dimensions  int     `mapstructure:"dimensions"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig holds the two embedding spaces. Content is D1, Relation is D2.
type EmbeddingConfig struct {
	Content  ModelConfig          `mapstructure:"content"`
	Relation ModelConfig          `mapstructure:"relation"`
	Cache    EmbeddingCacheConfig `mapstructure:"cache"`
}

// EmbeddingCacheConfig configures the persistent embedding cache.
type EmbeddingCacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // empty means in-memory
}

// RetrievalConfig holds the tunables of search, expansion and orchestration.
type RetrievalConfig struct {
	Alpha             float64       `mapstructure:"alpha"`
	Beta              float64       `mapstructure:"beta"`
	DefaultLimit      int           `mapstructure:"default_limit"`
	RNEThreshold      float64       `mapstructure:"rne_threshold"`
	RNEMaxResults     int           `mapstructure:"rne_max_results"`
	INEK              int           `mapstructure:"ine_k"`
	ExpansionMode     string        `mapstructure:"expansion_mode"` // rne, ine, none
	SeedCount         int           `mapstructure:"seed_count"`
	SearchableLevel   string        `mapstructure:"searchable_level"`
	RelationDiscount  float64       `mapstructure:"relation_discount"`
	MaxResolvedLeaves int           `mapstructure:"max_resolved_leaves"`
	ResolveDepth      int           `mapstructure:"resolve_depth"`
	ShortlistSize     int           `mapstructure:"shortlist_size"`
	FanoutLimit       int           `mapstructure:"fanout_limit"`
	SampleSize        int           `mapstructure:"sample_size"`
	SynthesisTopN     int           `mapstructure:"synthesis_top_n"`
	ExcludedClasses   []string      `mapstructure:"excluded_classes"`
	PerCallTimeout    time.Duration `mapstructure:"per_call_timeout"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
}

// RegistryConfig configures the domain registry cache.
type RegistryConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// A2AConfig selects how domain workers reach each other.
type A2AConfig struct {
	Transport string            `mapstructure:"transport"` // local, http
	Peers     map[string]string `mapstructure:"peers"`     // domain id -> base URL
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	TracePath   string `mapstructure:"trace_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "color")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.database", "neo4j")
	viper.SetDefault("database.content_index", "paragraph_content_embedding")
	viper.SetDefault("database.relation_index", "relation_context_embedding")

	viper.SetDefault("embedding.content.provider", "openai")
	viper.SetDefault("embedding.content.model", "text-embedding-3-large")
	viper.SetDefault("embedding.content.dimensions", 3072)
	viper.SetDefault("embedding.relation.provider", "openai")
	viper.SetDefault("embedding.relation.model", "text-embedding-3-small")
	viper.SetDefault("embedding.relation.dimensions", 1536)
	viper.SetDefault("embedding.cache.enabled", false)

	viper.SetDefault("judgment.provider", "openai")
	viper.SetDefault("judgment.model", "gpt-4o-mini")
	viper.SetDefault("judgment.temperature", 0.0)
	viper.SetDefault("judgment.max_tokens", 1024)

	viper.SetDefault("retrieval.alpha", 0.7)
	viper.SetDefault("retrieval.beta", 0.3)
	viper.SetDefault("retrieval.default_limit", 10)
	viper.SetDefault("retrieval.rne_threshold", 0.75)
	viper.SetDefault("retrieval.rne_max_results", 20)
	viper.SetDefault("retrieval.ine_k", 10)
	viper.SetDefault("retrieval.expansion_mode", "rne")
	viper.SetDefault("retrieval.seed_count", 5)
	viper.SetDefault("retrieval.searchable_level", "paragraph")
	viper.SetDefault("retrieval.relation_discount", 0.9)
	viper.SetDefault("retrieval.max_resolved_leaves", 3)
	viper.SetDefault("retrieval.resolve_depth", 2)
	viper.SetDefault("retrieval.shortlist_size", 5)
	viper.SetDefault("retrieval.fanout_limit", 2)
	viper.SetDefault("retrieval.sample_size", 3)
	viper.SetDefault("retrieval.synthesis_top_n", 10)
	viper.SetDefault("retrieval.excluded_classes", []string{"supplementary", "transitional", "부칙"})
	viper.SetDefault("retrieval.per_call_timeout", 15*time.Second)
	viper.SetDefault("retrieval.query_timeout", 45*time.Second)

	viper.SetDefault("registry.ttl", 300*time.Second)

	viper.SetDefault("a2a.transport", "local")
	viper.SetDefault("a2a.timeout", 15*time.Second)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.lexigraph/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.Content.APIKey == "" {
			config.Embedding.Content.APIKey = apiKey
		}
		if config.Embedding.Relation.APIKey == "" {
			config.Embedding.Relation.APIKey = apiKey
		}
		if config.Judgment.APIKey == "" {
			config.Judgment.APIKey = apiKey
		}
	}

	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}

// Validate checks the settings that are fatal when wrong. Every failure is a
// types.ErrConfiguration.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "neo4j":
		if c.Database.URI == "" {
			return types.NewConfigurationError("database.uri", "required for the neo4j driver")
		}
	case "memory":
		if c.Database.FixturePath == "" {
			return types.NewConfigurationError("database.fixture_path", "required for the memory driver")
		}
	default:
		return types.NewConfigurationError("database.driver", "unknown driver %q", c.Database.Driver)
	}

	if c.Embedding.Content.Dimensions <= 0 {
		return types.NewConfigurationError("embedding.content.dimensions", "must be positive, got %d", c.Embedding.Content.Dimensions)
	}
	if c.Embedding.Relation.Dimensions <= 0 {
		return types.NewConfigurationError("embedding.relation.dimensions", "must be positive, got %d", c.Embedding.Relation.Dimensions)
	}

	return c.Retrieval.Validate()
}

// Validate checks the retrieval tunables.
func (r *RetrievalConfig) Validate() error {
	if r.Alpha < 0 || r.Beta < 0 || math.Abs(r.Alpha+r.Beta-1) > 1e-9 {
		return types.NewConfigurationError("retrieval.alpha", "alpha (%v) and beta (%v) must be non-negative and sum to 1", r.Alpha, r.Beta)
	}
	if r.RNEThreshold < 0 || r.RNEThreshold > 1 {
		return types.NewConfigurationError("retrieval.rne_threshold", "must be within [0,1], got %v", r.RNEThreshold)
	}
	if r.FanoutLimit < 0 || r.FanoutLimit > 2 {
		return types.NewConfigurationError("retrieval.fanout_limit", "must be within [0,2], got %d", r.FanoutLimit)
	}
	if r.INEK < 0 {
		return types.NewConfigurationError("retrieval.ine_k", "must not be negative, got %d", r.INEK)
	}
	if r.RelationDiscount <= 0 || r.RelationDiscount > 1 {
		return types.NewConfigurationError("retrieval.relation_discount", "must be within (0,1], got %v", r.RelationDiscount)
	}
	switch strings.ToLower(r.ExpansionMode) {
	case "rne", "ine", "none":
	default:
		return types.NewConfigurationError("retrieval.expansion_mode", "unknown mode %q", r.ExpansionMode)
	}
	if _, ok := types.ParseLevel(r.SearchableLevel); !ok {
		return types.NewConfigurationError("retrieval.searchable_level", "unknown level %q", r.SearchableLevel)
	}
	return nil
}

// Level returns the configured searchable level, Paragraph when unset or unknown.
func (r *RetrievalConfig) Level() types.Level {
	if lvl, ok := types.ParseLevel(r.SearchableLevel); ok {
		return lvl
	}
	return types.LevelParagraph
}
