package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soundprediction/lexigraph/pkg/types"
	"github.com/soundprediction/lexigraph/pkg/utils"
)

// MemoryStore is an in-process GraphStore. Nodes, relations and domains are listed
// in insertion order, which makes every query deterministic.
type MemoryStore struct {
	mu sync.RWMutex

	contentDims  int
	relationDims int

	nodes     map[string]*types.DocumentNode
	order     []string
	rank      map[string]int
	children  map[string][]*types.DocumentNode
	relations []*types.RelationalEdge
	outgoing  map[string][]*types.RelationalEdge
	incoming  map[string][]*types.RelationalEdge
	domains   []*types.Domain
}

// NewMemoryStore creates an empty store for the given content (D1) and relation (D2)
// dimensionalities.
func NewMemoryStore(contentDims, relationDims int) *MemoryStore {
	return &MemoryStore{
		contentDims:  contentDims,
		relationDims: relationDims,
		nodes:        make(map[string]*types.DocumentNode),
		rank:         make(map[string]int),
		children:     make(map[string][]*types.DocumentNode),
		outgoing:     make(map[string][]*types.RelationalEdge),
		incoming:     make(map[string][]*types.RelationalEdge),
	}
}

// AddNode inserts a node. Its parent, when set, must already exist.
func (m *MemoryStore) AddNode(node *types.DocumentNode) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if len(node.Embedding) > 0 && len(node.Embedding) != m.contentDims {
		return fmt.Errorf("node %s: %w: got %d, want %d", node.ID, ErrDimensionMismatch, len(node.Embedding), m.contentDims)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[node.ID]; exists {
		return fmt.Errorf("node %s already exists", node.ID)
	}
	if node.ParentID != "" {
		if _, ok := m.nodes[node.ParentID]; !ok {
			return fmt.Errorf("node %s: parent %s: %w", node.ID, node.ParentID, types.ErrNotFound)
		}
	}

	m.nodes[node.ID] = node
	m.rank[node.ID] = len(m.order)
	m.order = append(m.order, node.ID)

	if node.ParentID != "" {
		siblings := append(m.children[node.ParentID], node)
		sort.SliceStable(siblings, func(i, j int) bool {
			return siblings[i].Ordinal < siblings[j].Ordinal
		})
		m.children[node.ParentID] = siblings
	}
	return nil
}

// AddRelation inserts a relational edge between two existing nodes.
func (m *MemoryStore) AddRelation(edge *types.RelationalEdge) error {
	if edge.ID == "" {
		return types.ErrEmptyID
	}
	if !edge.Type.IsRelational() {
		return fmt.Errorf("relation %s: unsupported type %q", edge.ID, edge.Type)
	}
	if len(edge.Embedding) > 0 && len(edge.Embedding) != m.relationDims {
		return fmt.Errorf("relation %s: %w: got %d, want %d", edge.ID, ErrDimensionMismatch, len(edge.Embedding), m.relationDims)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []string{edge.SourceID, edge.TargetID} {
		if _, ok := m.nodes[id]; !ok {
			return fmt.Errorf("relation %s: node %s: %w", edge.ID, id, types.ErrNotFound)
		}
	}

	m.relations = append(m.relations, edge)
	m.outgoing[edge.SourceID] = sortedByID(append(m.outgoing[edge.SourceID], edge))
	m.incoming[edge.TargetID] = sortedByID(append(m.incoming[edge.TargetID], edge))
	return nil
}

// AddDomain appends a domain. A missing centroid is computed from member embeddings.
func (m *MemoryStore) AddDomain(domain *types.Domain) error {
	if domain.ID == "" {
		return types.ErrEmptyID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.domains {
		if d.ID == domain.ID {
			return fmt.Errorf("domain %s already exists", domain.ID)
		}
	}
	if len(domain.Centroid) == 0 {
		vectors := make([][]float32, 0, len(domain.MemberIDs))
		for _, id := range domain.MemberIDs {
			if n, ok := m.nodes[id]; ok {
				vectors = append(vectors, n.Embedding)
			}
		}
		domain.Centroid = utils.Centroid(vectors)
	}
	m.domains = append(m.domains, domain)
	return nil
}

// SearchableNodeIDs lists every node carrying a content embedding.
func (m *MemoryStore) SearchableNodeIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, id := range m.order {
		if len(m.nodes[id].Embedding) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Dimensions implements VectorSearcher.
func (m *MemoryStore) Dimensions(index VectorIndex) int {
	if index == RelationIndex {
		return m.relationDims
	}
	return m.contentDims
}

// VectorSearch implements VectorSearcher by exhaustive scan.
func (m *MemoryStore) VectorSearch(ctx context.Context, index VectorIndex, embedding []float32, filter []string, topK int) ([]VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.vector_search", err)
	}
	if want := m.Dimensions(index); len(embedding) != want {
		return nil, fmt.Errorf("%s index: %w: got %d, want %d", index, ErrDimensionMismatch, len(embedding), want)
	}
	if topK <= 0 {
		return []VectorHit{}, nil
	}

	allowed := filterSet(filter)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []VectorHit
	if index == ContentIndex {
		for _, id := range m.order {
			n := m.nodes[id]
			if len(n.Embedding) == 0 || !allows(allowed, id) {
				continue
			}
			hits = append(hits, VectorHit{Node: n, Similarity: utils.UnitSimilarity(embedding, n.Embedding)})
		}
	} else {
		for _, e := range m.relations {
			if len(e.Embedding) == 0 || !allows(allowed, e.SourceID) {
				continue
			}
			hits = append(hits, VectorHit{Node: m.nodes[e.TargetID], Edge: e, Similarity: utils.UnitSimilarity(embedding, e.Embedding)})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// ExactPatternSearch implements PatternSearcher over searchable nodes.
func (m *MemoryStore) ExactPatternSearch(ctx context.Context, pattern string, filter []string, limit int) ([]*types.DocumentNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.exact_pattern_search", err)
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if limit <= 0 {
		return []*types.DocumentNode{}, nil
	}

	allowed := filterSet(filter)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.DocumentNode
	for _, id := range m.order {
		n := m.nodes[id]
		if len(n.Embedding) == 0 || !allows(allowed, id) {
			continue
		}
		if re.MatchString(n.FullPath) || re.MatchString(n.Title) {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Neighbors implements GraphNavigator.
func (m *MemoryStore) Neighbors(ctx context.Context, nodeID string) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.neighbors", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, types.ErrNotFound)
	}

	var out []Neighbor
	if parent, ok := m.nodes[node.ParentID]; ok {
		out = append(out, Neighbor{Node: parent, EdgeType: types.EdgeParent})
	}
	for _, c := range m.children[nodeID] {
		out = append(out, Neighbor{Node: c, EdgeType: types.EdgeChild})
	}
	if hasContent(node) && node.ParentID != "" {
		for _, s := range m.children[node.ParentID] {
			if s.ID != nodeID && hasContent(s) {
				out = append(out, Neighbor{Node: s, EdgeType: types.EdgeSibling})
			}
		}
	}
	for _, e := range m.outgoing[nodeID] {
		out = append(out, Neighbor{Node: m.nodes[e.TargetID], EdgeType: e.Type, RelationEmbedding: e.Embedding, Context: e.Context})
	}
	for _, e := range m.incoming[nodeID] {
		out = append(out, Neighbor{Node: m.nodes[e.SourceID], EdgeType: e.Type, RelationEmbedding: e.Embedding, Context: e.Context})
	}
	return out, nil
}

// Children implements GraphNavigator.
func (m *MemoryStore) Children(ctx context.Context, nodeID string) ([]*types.DocumentNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.children", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*types.DocumentNode(nil), m.children[nodeID]...), nil
}

// GetNodes implements GraphNavigator. Unknown ids are skipped; order follows nodeIDs.
func (m *MemoryStore) GetNodes(ctx context.Context, nodeIDs []string) ([]*types.DocumentNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.get_nodes", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.DocumentNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, ok := m.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// ResolveNearestTitledAncestor implements GraphNavigator.
func (m *MemoryStore) ResolveNearestTitledAncestor(ctx context.Context, nodeID string) (*types.DocumentNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.resolve_ancestor", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, types.ErrNotFound)
	}

	var ancestors []*types.DocumentNode
	for hop := 0; hop < maxAncestorHops && node.ParentID != ""; hop++ {
		parent, ok := m.nodes[node.ParentID]
		if !ok {
			break
		}
		ancestors = append(ancestors, parent)
		node = parent
	}
	return nearestTitled(ancestors), nil
}

// ListDomains implements DomainDirectory. Returned domains are copies.
func (m *MemoryStore) ListDomains(ctx context.Context) ([]*types.Domain, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("memory.list_domains", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Domain, len(m.domains))
	for i, d := range m.domains {
		cp := *d
		cp.MemberIDs = append([]string(nil), d.MemberIDs...)
		out[i] = &cp
	}
	return out, nil
}

// Ping implements GraphStore.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements GraphStore.
func (m *MemoryStore) Close() error {
	return nil
}

func allows(allowed map[string]struct{}, id string) bool {
	if allowed == nil {
		return true
	}
	_, ok := allowed[id]
	return ok
}

func hasContent(n *types.DocumentNode) bool {
	return n.Content != "" || len(n.Embedding) > 0
}

func sortedByID(edges []*types.RelationalEdge) []*types.RelationalEdge {
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].ID < edges[j].ID
	})
	return edges
}
