// Package driver provides read-only access to the hierarchical document graph.
//
// GraphStore is the contract the retrieval core is written against. Two
// implementations are provided:
//   - Neo4jStore: a Neo4j database with vector indexes over paragraph content
//     embeddings and relation context embeddings
//   - MemoryStore: an in-process graph, loadable from a YAML snapshot, used for
//     development and tests
//
// # Graph Model
//
// Document nodes carry the :Document label and a level property. Containment is
// (:Document)-[:CONTAINS {ordinal}]->(:Document). Relational edges are
// (:Document)-[:RELATES {id, type, context, embedding}]->(:Document). Domains are
// (:Domain)-[:HAS_MEMBER]->(:Document).
//
// # Failure Semantics
//
// Every failure returned by a store is classified as types.ErrStoreUnavailable.
// Callers treat such errors as zero results for that sub-query.
//
// # Thread Safety
//
// All implementations are safe for concurrent use from multiple goroutines.
package driver
