package lexigraph

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/embedder"
	"github.com/soundprediction/lexigraph/pkg/judge"
	"github.com/soundprediction/lexigraph/pkg/metrics"
	"github.com/soundprediction/lexigraph/pkg/orchestrator"
	"github.com/soundprediction/lexigraph/pkg/registry"
	"github.com/soundprediction/lexigraph/pkg/search"
	"github.com/soundprediction/lexigraph/pkg/telemetry"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// Engine is a running lexigraph instance. It is safe for concurrent use.
type Engine struct {
	store    driver.GraphStore
	content  embedder.Client
	relation embedder.Client

	pipeline *search.Pipeline
	expander *search.Expander
	registry *registry.Registry
	router   *orchestrator.Router

	traces  *telemetry.TraceWriter
	closers []io.Closer
	logger  *slog.Logger

	cancel context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTraceWriter records one trace per answered query.
func WithTraceWriter(w *telemetry.TraceWriter) Option {
	return func(e *Engine) {
		e.traces = w
	}
}

// WithCloser registers a resource released by Close, after the store and embedders.
func WithCloser(c io.Closer) Option {
	return func(e *Engine) {
		e.closers = append(e.closers, c)
	}
}

// New wires an engine over the given store, embedders and judge. Close releases
// the store and both embedders.
func New(store driver.GraphStore, content, relation embedder.Client, j judge.Judge, cfg *config.Config, opts ...Option) (*Engine, error) {
	return newEngine(store, content, relation, j, cfg, nil, opts...)
}

func newEngine(store driver.GraphStore, content, relation embedder.Client, j judge.Judge, cfg *config.Config, transport func(a2a.Directory) a2a.Transport, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    store,
		content:  content,
		relation: relation,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	metrics.Register()

	rc := cfg.Retrieval
	pcfg := search.DefaultConfig()
	pcfg.SearchableLevel = rc.Level()
	if rc.RelationDiscount > 0 {
		pcfg.RelationDiscount = rc.RelationDiscount
	}
	if rc.MaxResolvedLeaves > 0 {
		pcfg.MaxResolvedLeaves = rc.MaxResolvedLeaves
	}
	if rc.ResolveDepth > 0 {
		pcfg.ResolveDepth = rc.ResolveDepth
	}
	if rc.ExcludedClasses != nil {
		pcfg.AdministrativeClasses = rc.ExcludedClasses
	}

	pipeline, err := search.NewPipeline(store, content, relation,
		search.WithConfig(pcfg),
		search.WithLogger(e.logger.With("component", "pipeline")),
	)
	if err != nil {
		return nil, err
	}
	e.pipeline = pipeline

	ecfg := search.DefaultExpanderConfig()
	ecfg.SearchableLevel = rc.Level()
	if rc.RNEThreshold > 0 {
		ecfg.Threshold = rc.RNEThreshold
	}
	if rc.RNEMaxResults > 0 {
		ecfg.MaxResults = rc.RNEMaxResults
	}
	if rc.INEK > 0 {
		ecfg.K = rc.INEK
	}
	e.expander = search.NewExpander(store, ecfg, e.logger.With("component", "expander"))

	regOpts := []registry.Option{registry.WithLogger(e.logger.With("component", "registry"))}
	if cfg.Registry.TTL > 0 {
		regOpts = append(regOpts, registry.WithTTL(cfg.Registry.TTL))
	}
	if mem, ok := store.(*driver.MemoryStore); ok {
		regOpts = append(regOpts, registry.WithSearchableIDs(mem.SearchableNodeIDs))
	}
	e.registry = registry.New(store, regOpts...)

	routerOpts := []orchestrator.RouterOption{orchestrator.WithRouterLogger(e.logger.With("component", "router"))}
	if transport != nil {
		routerOpts = append(routerOpts, orchestrator.WithTransport(transport))
	}
	router, err := orchestrator.NewRouter(e.registry, pipeline, e.expander, content, j, orchestrator.FromRetrieval(rc), routerOpts...)
	if err != nil {
		return nil, err
	}
	e.router = router
	return e, nil
}

// Start loads the first registry snapshot and keeps it fresh until ctx is done
// or Close is called. A failed first load is logged; the engine then answers
// with empty results until a refresh succeeds.
func (e *Engine) Start(ctx context.Context) error {
	if e.cancel != nil {
		return nil
	}
	if err := e.registry.Refresh(ctx); err != nil {
		e.logger.Warn("Initial domain registry load failed, serving empty results until a refresh succeeds", "error", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	utils.Go(e.logger, "registry.run", func() { e.registry.Run(runCtx) })
	return nil
}

// Search answers a query, routing it to the best domain unless req.DomainID is set.
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	if _, ok := ctx.Value(types.ContextKeyRequestSource).(string); !ok {
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "engine")
	}
	resp, err := e.router.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	if e.traces != nil {
		if terr := e.traces.Record(telemetry.NewQueryTrace(req, resp)); terr != nil {
			e.logger.WarnContext(ctx, "Failed to record query trace", "error", terr)
		}
	}
	return resp, nil
}

// HandleA2A serves a collaboration request addressed to domainID.
func (e *Engine) HandleA2A(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error) {
	return e.router.HandleA2A(ctx, domainID, req)
}

// Ping verifies the graph store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// DomainCount returns the number of domains in the current registry snapshot.
func (e *Engine) DomainCount(ctx context.Context) int {
	return len(e.registry.GetAll(ctx, false))
}

// Registry returns the domain registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Close stops the registry refresher and releases every resource the engine owns.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	var errs []error
	if e.traces != nil {
		errs = append(errs, e.traces.Close())
	}
	errs = append(errs, e.content.Close(), e.relation.Close(), e.store.Close())
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
