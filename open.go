package lexigraph

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/alert"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/embedder"
	"github.com/soundprediction/lexigraph/pkg/judge"
	"github.com/soundprediction/lexigraph/pkg/nlp"
	"github.com/soundprediction/lexigraph/pkg/telemetry"
)

// Open builds an engine from configuration: the graph store named by
// database.driver, OpenAI-compatible embedders and judge, and the a2a transport.
// cfg must already be validated.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg.Database, cfg.Embedding, logger)
	if err != nil {
		return nil, err
	}

	alerter := alert.New(cfg.Alert)

	content, err := openEmbedder("content", cfg.Embedding.Content, cfg, alerter, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	relation, err := openEmbedder("relation", cfg.Embedding.Relation, cfg, alerter, logger)
	if err != nil {
		content.Close()
		store.Close()
		return nil, err
	}

	client, err := openJudgeClient(cfg, alerter, logger)
	if err != nil {
		relation.Close()
		content.Close()
		store.Close()
		return nil, err
	}
	j := judge.NewLLMJudge(client, judge.WithLogger(logger.With("component", "judge")))

	opts := []Option{WithLogger(logger), WithCloser(client)}
	if cfg.Telemetry.TracePath != "" {
		traces, err := telemetry.NewTraceWriter(cfg.Telemetry.TracePath, 0)
		if err != nil {
			client.Close()
			relation.Close()
			content.Close()
			store.Close()
			return nil, err
		}
		opts = append(opts, WithTraceWriter(traces))
	}

	var transport func(a2a.Directory) a2a.Transport
	if strings.EqualFold(cfg.A2A.Transport, "http") {
		peers := cfg.A2A.Peers
		timeout := cfg.A2A.Timeout
		transport = func(dir a2a.Directory) a2a.Transport {
			return a2a.NewHTTPTransport(peers, timeout, a2a.NewLocalTransport(dir))
		}
	}

	e, err := newEngine(store, content, relation, j, cfg, transport, opts...)
	if err != nil {
		client.Close()
		relation.Close()
		content.Close()
		store.Close()
		return nil, err
	}
	return e, nil
}

// OpenStore connects the graph store named by db.Driver.
func OpenStore(ctx context.Context, db config.DatabaseConfig, emb config.EmbeddingConfig, logger *slog.Logger) (driver.GraphStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch db.Driver {
	case "memory":
		store, err := driver.LoadMemoryStore(db.FixturePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture %s: %w", db.FixturePath, err)
		}
		return store, nil
	case "neo4j":
		store, err := driver.NewNeo4jStore(driver.Neo4jConfig{
			URI:                db.URI,
			Username:           db.Username,
			Password:           db.Password,
			Database:           db.Database,
			ContentIndex:       db.ContentIndex,
			RelationIndex:      db.RelationIndex,
			ContentDimensions:  emb.Content.Dimensions,
			RelationDimensions: emb.Relation.Dimensions,
		}, logger.With("component", "neo4j"))
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Graph store not reachable at startup", "uri", db.URI, "error", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

func openEmbedder(name string, mc config.ModelConfig, cfg *config.Config, alerter alert.Alerter, logger *slog.Logger) (embedder.Client, error) {
	var client embedder.Client = embedder.NewOpenAIEmbedder(mc.APIKey, embedder.Config{
		Model:      mc.Model,
		Dimensions: mc.Dimensions,
		BaseURL:    mc.BaseURL,
	})

	if cfg.Embedding.Cache.Enabled {
		path := cfg.Embedding.Cache.Path
		if path != "" {
			path = filepath.Join(path, name)
		}
		cached, err := embedder.NewCachedEmbedder(client, mc.Model, path, logger.With("component", "embedding_cache", "space", name))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to open %s embedding cache: %w", name, err)
		}
		client = cached
	}

	if cfg.CircuitBreaker.Enabled {
		client = embedder.NewCircuitBreakerEmbedder(client, cfg.CircuitBreaker, alerter, name+"-embedder", logger)
	}
	return client, nil
}

func openJudgeClient(cfg *config.Config, alerter alert.Alerter, logger *slog.Logger) (nlp.Client, error) {
	base, err := nlp.NewOpenAIClient(cfg.Judgment)
	if err != nil {
		return nil, fmt.Errorf("failed to create judgment client: %w", err)
	}

	retryConfig := nlp.DefaultRetryConfig()
	retryConfig.Logger = logger
	var client nlp.Client = nlp.NewRetryClient(base, retryConfig)
	if cfg.CircuitBreaker.Enabled {
		client = nlp.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alerter, "judgment", logger)
	}
	return client, nil
}
