package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// Neo4jConfig holds connection and index settings for Neo4jStore.
type Neo4jConfig struct {
	URI                string
	Username           string
	Password           string
	Database           string
	ContentIndex       string
	RelationIndex      string
	ContentDimensions  int
	RelationDimensions int
}

// Neo4jStore implements GraphStore on Neo4j 5 vector indexes.
type Neo4jStore struct {
	client neo4j.DriverWithContext
	cfg    Neo4jConfig
	logger *slog.Logger
}

// NewNeo4jStore creates a new Neo4j store instance.
func NewNeo4jStore(cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{client: client, cfg: cfg, logger: logger}, nil
}

// Dimensions implements VectorSearcher.
func (n *Neo4jStore) Dimensions(index VectorIndex) int {
	if index == RelationIndex {
		return n.cfg.RelationDimensions
	}
	return n.cfg.ContentDimensions
}

// candidatePool is how many index neighbors are requested per wanted hit when the
// vector index is queried without a filter.
const candidatePool = 4

// VectorSearch implements VectorSearcher. With a filter the member set is scored
// exactly; without one the approximate vector index is used.
func (n *Neo4jStore) VectorSearch(ctx context.Context, index VectorIndex, embedding []float32, filter []string, topK int) ([]VectorHit, error) {
	if want := n.Dimensions(index); len(embedding) != want {
		return nil, fmt.Errorf("%s index: %w: got %d, want %d", index, ErrDimensionMismatch, len(embedding), want)
	}
	if topK <= 0 {
		return []VectorHit{}, nil
	}

	var query string
	params := map[string]any{
		"embedding": embedding,
		"filter":    filter,
		"k":         topK,
	}

	switch {
	case index == ContentIndex && len(filter) > 0:
		query = `
			MATCH (n:Document)
			WHERE n.id IN $filter AND n.embedding IS NOT NULL
			WITH n, vector.similarity.cosine(n.embedding, $embedding) AS score
			RETURN n, null AS r, score
			ORDER BY score DESC, n.id
			LIMIT $k
		`
	case index == ContentIndex:
		query = `
			CALL db.index.vector.queryNodes($index, $candidates, $embedding) YIELD node AS n, score
			RETURN n, null AS r, score
			ORDER BY score DESC, n.id
			LIMIT $k
		`
		params["index"] = n.cfg.ContentIndex
		params["candidates"] = topK * candidatePool
	case len(filter) > 0:
		query = `
			MATCH (s:Document)-[r:RELATES]->(n:Document)
			WHERE s.id IN $filter AND r.embedding IS NOT NULL
			WITH n, r, s, vector.similarity.cosine(r.embedding, $embedding) AS score
			RETURN n, r, s.id AS source_id, score
			ORDER BY score DESC, r.id
			LIMIT $k
		`
	default:
		query = `
			CALL db.index.vector.queryRelationships($index, $candidates, $embedding) YIELD relationship AS r, score
			MATCH (s:Document)-[r]->(n:Document)
			RETURN n, r, s.id AS source_id, score
			ORDER BY score DESC, r.id
			LIMIT $k
		`
		params["index"] = n.cfg.RelationIndex
		params["candidates"] = topK * candidatePool
	}

	records, err := n.collect(ctx, "neo4j.vector_search", query, params)
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, len(records))
	for _, record := range records {
		dbNode, err := column[dbtype.Node](record, "n")
		if err != nil {
			continue
		}
		scoreValue, _ := record.Get("score")
		score, _ := scoreValue.(float64)

		hit := VectorHit{Node: documentFromDBNode(dbNode), Similarity: cosineFromScore(score)}
		if index == RelationIndex {
			rel, err := column[dbtype.Relationship](record, "r")
			if err != nil {
				continue
			}
			sourceValue, _ := record.Get("source_id")
			sourceID, _ := sourceValue.(string)
			hit.Edge = relationFromDB(rel, sourceID, hit.Node.ID)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ExactPatternSearch implements PatternSearcher.
func (n *Neo4jStore) ExactPatternSearch(ctx context.Context, pattern string, filter []string, limit int) ([]*types.DocumentNode, error) {
	expr := PatternExpression(pattern)
	if expr == "" || limit <= 0 {
		return []*types.DocumentNode{}, nil
	}

	query := `
		MATCH (n:Document)
		WHERE n.embedding IS NOT NULL
		  AND (size($filter) = 0 OR n.id IN $filter)
		  AND (n.full_path =~ $regex OR n.title =~ $regex)
		RETURN n
		ORDER BY n.full_path, n.id
		LIMIT $limit
	`
	records, err := n.collect(ctx, "neo4j.exact_pattern_search", query, map[string]any{
		"filter": filter,
		"regex":  "(?s).*" + expr + ".*",
		"limit":  limit,
	})
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "n"), nil
}

// Neighbors implements GraphNavigator.
func (n *Neo4jStore) Neighbors(ctx context.Context, nodeID string) ([]Neighbor, error) {
	query := `
		MATCH (n:Document {id: $id})
		OPTIONAL MATCH (p:Document)-[:CONTAINS]->(n)
		CALL {
			WITH n
			MATCH (n)-[c:CONTAINS]->(child:Document)
			RETURN 'child' AS kind, child AS m, null AS r, c.ordinal AS ord, child.id AS key
			UNION ALL
			WITH n, p
			MATCH (p)-[c:CONTAINS]->(s:Document)
			WHERE s <> n AND (s.content <> '' OR s.embedding IS NOT NULL)
			  AND (n.content <> '' OR n.embedding IS NOT NULL)
			RETURN 'sibling' AS kind, s AS m, null AS r, c.ordinal AS ord, s.id AS key
			UNION ALL
			WITH n
			MATCH (n)-[r:RELATES]->(t:Document)
			RETURN 'out' AS kind, t AS m, r, 0 AS ord, r.id AS key
			UNION ALL
			WITH n
			MATCH (t:Document)-[r:RELATES]->(n)
			RETURN 'in' AS kind, t AS m, r, 0 AS ord, r.id AS key
		}
		RETURN p, kind, m, r
		ORDER BY CASE kind WHEN 'child' THEN 0 WHEN 'sibling' THEN 1 WHEN 'out' THEN 2 ELSE 3 END, ord, key
	`
	records, err := n.collect(ctx, "neo4j.neighbors", query, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}

	var out []Neighbor
	for i, record := range records {
		if i == 0 {
			if parent, err := column[dbtype.Node](record, "p"); err == nil {
				out = append(out, Neighbor{Node: documentFromDBNode(parent), EdgeType: types.EdgeParent})
			}
		}
		dbNode, err := column[dbtype.Node](record, "m")
		if err != nil {
			continue
		}
		node := documentFromDBNode(dbNode)
		kindValue, _ := record.Get("kind")
		switch kindValue {
		case "child":
			out = append(out, Neighbor{Node: node, EdgeType: types.EdgeChild})
		case "sibling":
			out = append(out, Neighbor{Node: node, EdgeType: types.EdgeSibling})
		default:
			rel, err := column[dbtype.Relationship](record, "r")
			if err != nil {
				continue
			}
			edge := relationFromDB(rel, "", "")
			out = append(out, Neighbor{Node: node, EdgeType: edge.Type, RelationEmbedding: edge.Embedding, Context: edge.Context})
		}
	}

	// A leaf with no parent-side rows still has its parent.
	if len(records) == 0 {
		parents, err := n.collect(ctx, "neo4j.neighbors", `
			MATCH (p:Document)-[:CONTAINS]->(:Document {id: $id})
			RETURN p
		`, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		for _, p := range nodesFromRecords(parents, "p") {
			out = append(out, Neighbor{Node: p, EdgeType: types.EdgeParent})
		}
	}
	return out, nil
}

// Children implements GraphNavigator.
func (n *Neo4jStore) Children(ctx context.Context, nodeID string) ([]*types.DocumentNode, error) {
	records, err := n.collect(ctx, "neo4j.children", `
		MATCH (:Document {id: $id})-[c:CONTAINS]->(n:Document)
		RETURN n
		ORDER BY c.ordinal, n.id
	`, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(records, "n"), nil
}

// GetNodes implements GraphNavigator. Order follows nodeIDs.
func (n *Neo4jStore) GetNodes(ctx context.Context, nodeIDs []string) ([]*types.DocumentNode, error) {
	if len(nodeIDs) == 0 {
		return []*types.DocumentNode{}, nil
	}
	records, err := n.collect(ctx, "neo4j.get_nodes", `
		MATCH (n:Document)
		WHERE n.id IN $ids
		RETURN n
	`, map[string]any{"ids": nodeIDs})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.DocumentNode, len(records))
	for _, node := range nodesFromRecords(records, "n") {
		byID[node.ID] = node
	}
	out := make([]*types.DocumentNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if node, ok := byID[id]; ok {
			out = append(out, node)
		}
	}
	return out, nil
}

// ResolveNearestTitledAncestor implements GraphNavigator. Ancestors are fetched in one
// bounded query and scanned nearest first.
func (n *Neo4jStore) ResolveNearestTitledAncestor(ctx context.Context, nodeID string) (*types.DocumentNode, error) {
	query := fmt.Sprintf(`
		MATCH path = (a:Document)-[:CONTAINS*1..%d]->(:Document {id: $id})
		RETURN a, length(path) AS hops
		ORDER BY hops
	`, maxAncestorHops)
	records, err := n.collect(ctx, "neo4j.resolve_ancestor", query, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	return nearestTitled(nodesFromRecords(records, "a")), nil
}

// ListDomains implements DomainDirectory, ordered by creation time.
func (n *Neo4jStore) ListDomains(ctx context.Context) ([]*types.Domain, error) {
	records, err := n.collect(ctx, "neo4j.list_domains", `
		MATCH (d:Domain)
		OPTIONAL MATCH (d)-[:HAS_MEMBER]->(m:Document)
		WITH d, m ORDER BY m.id
		WITH d, collect(m.id) AS members
		RETURN d, members
		ORDER BY d.created_at, d.id
	`, nil)
	if err != nil {
		return nil, err
	}

	domains := make([]*types.Domain, 0, len(records))
	for _, record := range records {
		dbNode, err := column[dbtype.Node](record, "d")
		if err != nil {
			n.logger.Warn("Skipping malformed domain record", "error", err)
			continue
		}
		mv, _ := record.Get("members")
		members := toStrings(mv)
		domains = append(domains, domainFromDBNode(dbNode, members))
	}
	return domains, nil
}

// Ping implements GraphStore.
func (n *Neo4jStore) Ping(ctx context.Context) error {
	if err := n.client.VerifyConnectivity(ctx); err != nil {
		return storeError("neo4j.ping", err)
	}
	return nil
}

// Close implements GraphStore.
func (n *Neo4jStore) Close() error {
	return n.client.Close(context.Background())
}

func (n *Neo4jStore) collect(ctx context.Context, op, query string, params map[string]any) ([]*db.Record, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: n.cfg.Database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	records, ok := result.([]*db.Record)
	if !ok {
		return nil, storeError(op, &valueError{want: "[]*db.Record", got: result})
	}
	return records, nil
}

func nodesFromRecords(records []*db.Record, key string) []*types.DocumentNode {
	out := make([]*types.DocumentNode, 0, len(records))
	for _, record := range records {
		dbNode, err := column[dbtype.Node](record, key)
		if err != nil {
			continue
		}
		out = append(out, documentFromDBNode(dbNode))
	}
	return out
}

func documentFromDBNode(node dbtype.Node) *types.DocumentNode {
	p := props(node.Props)
	return &types.DocumentNode{
		ID:            p.str("id"),
		Level:         types.Level(p.integer("level")),
		Title:         p.str("title"),
		Content:       p.str("content"),
		FullPath:      p.str("full_path"),
		DocumentClass: p.str("document_class"),
		ParentID:      p.str("parent_id"),
		Ordinal:       p.integer("ordinal"),
		Embedding:     p.vector("embedding"),
	}
}

func relationFromDB(rel dbtype.Relationship, sourceID, targetID string) *types.RelationalEdge {
	p := props(rel.Props)
	edge := &types.RelationalEdge{
		ID:        p.str("id"),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      types.EdgeType(p.str("type")),
		Context:   p.str("context"),
		Embedding: p.vector("embedding"),
	}
	if !edge.Type.IsRelational() {
		edge.Type = types.EdgeCrossReference
	}
	return edge
}

func domainFromDBNode(node dbtype.Node, members []string) *types.Domain {
	p := props(node.Props)
	sort.Strings(members)
	return &types.Domain{
		ID:          p.str("id"),
		Name:        p.str("name"),
		Slug:        p.str("slug"),
		Description: p.str("description"),
		MemberIDs:   members,
		Centroid:    p.vector("centroid"),
		QueryCount:  int64(p.integer("query_count")),
		CreatedAt:   p.time("created_at"),
		UpdatedAt:   p.time("updated_at"),
	}
}

// cosineFromScore converts Neo4j's normalized cosine score, (1+cos)/2, back to a
// cosine clamped to [0,1].
func cosineFromScore(score float64) float64 {
	return types.ClampUnit(2*score - 1)
}
