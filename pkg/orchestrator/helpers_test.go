package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soundprediction/lexigraph/pkg/a2a"
	"github.com/soundprediction/lexigraph/pkg/driver"
	"github.com/soundprediction/lexigraph/pkg/prompts"
	"github.com/soundprediction/lexigraph/pkg/registry"
	"github.com/soundprediction/lexigraph/pkg/search"
	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	dims   int
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) Close() error    { return nil }

// fakeJudge answers from fixed tables.
type fakeJudge struct {
	mu sync.Mutex

	assess      map[string]prompts.Assessment
	assessErr   error
	assessDelay time.Duration

	collaborate    map[string]prompts.CollaborationResponse
	collaborateErr error

	synthesis string
	synthErr  error

	assessCalls      int
	collaborateCalls int
}

func (f *fakeJudge) Assess(ctx context.Context, _ string, d *types.Domain, _ []*types.DocumentNode) (prompts.Assessment, error) {
	f.mu.Lock()
	f.assessCalls++
	f.mu.Unlock()
	if f.assessDelay > 0 {
		select {
		case <-time.After(f.assessDelay):
		case <-ctx.Done():
			return prompts.Assessment{}, types.Wrap(types.KindTimeout, "fake.assess", ctx.Err())
		}
	}
	if f.assessErr != nil {
		return prompts.Assessment{}, f.assessErr
	}
	if a, ok := f.assess[d.ID]; ok {
		return a, nil
	}
	return prompts.Assessment{CanAnswer: false, Confidence: 0}, nil
}

func (f *fakeJudge) ShouldCollaborate(_ context.Context, _ string, domainName string, _ []types.QueryResult, _ []*types.Domain, _ int) (prompts.CollaborationResponse, error) {
	f.mu.Lock()
	f.collaborateCalls++
	f.mu.Unlock()
	if f.collaborateErr != nil {
		return prompts.CollaborationResponse{}, f.collaborateErr
	}
	return f.collaborate[domainName], nil
}

func (f *fakeJudge) Synthesize(_ context.Context, _ string, _ []types.QueryResult) (string, error) {
	return f.synthesis, f.synthErr
}

type harness struct {
	store    *driver.MemoryStore
	registry *registry.Registry
	router   *Router
}

func loadLabor(t *testing.T) *driver.MemoryStore {
	t.Helper()
	store, err := driver.LoadMemoryStore("../driver/testdata/labor.yaml")
	require.NoError(t, err)
	return store
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PerCallTimeout = 200 * time.Millisecond
	cfg.QueryTimeout = 2 * time.Second
	return cfg
}

func newHarness(t *testing.T, store *driver.MemoryStore, content, relation []float32, j *fakeJudge, cfg Config, opts ...RouterOption) *harness {
	t.Helper()
	contentEmb := &stubEmbedder{dims: 3, vector: content}
	pipeline, err := search.NewPipeline(store, contentEmb, &stubEmbedder{dims: 2, vector: relation})
	require.NoError(t, err)
	expander := search.NewExpander(store, search.DefaultExpanderConfig(), nil)

	reg := registry.New(store, registry.WithSearchableIDs(store.SearchableNodeIDs))
	require.NoError(t, reg.Refresh(context.Background()))

	router, err := NewRouter(reg, pipeline, expander, contentEmb, j, cfg, opts...)
	require.NoError(t, err)
	return &harness{store: store, registry: reg, router: router}
}

// scriptedTransport answers per domain id; a nil entry blocks until the context ends.
type scriptedTransport struct {
	mu       sync.Mutex
	replies  map[string]*types.A2AResponse
	requests []types.A2ARequest
}

func (s *scriptedTransport) Send(ctx context.Context, domainID string, req types.A2ARequest) (types.A2AResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	reply, ok := s.replies[domainID]
	s.mu.Unlock()
	if !ok {
		return types.A2AResponse{}, a2a.ErrUnknownDomain
	}
	if reply == nil {
		<-ctx.Done()
		return types.A2AResponse{}, ctx.Err()
	}
	return *reply, nil
}

func (s *scriptedTransport) sent() []types.A2ARequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.A2ARequest(nil), s.requests...)
}

func resultIDs(results []types.QueryResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.NodeID
	}
	return ids
}

func findResult(results []types.QueryResult, id string) (types.QueryResult, bool) {
	for _, r := range results {
		if r.NodeID == id {
			return r, true
		}
	}
	return types.QueryResult{}, false
}
