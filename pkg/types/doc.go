// Package types defines the core data types for the lexigraph retrieval engine.
//
// This package contains the fundamental types shared by every other package:
//   - DocumentNode: a node of the statute → article → paragraph → item hierarchy
//   - RelationalEdge: a non-hierarchical relation between two searchable nodes
//   - Domain: a disjoint partition of the searchable nodes served by one worker
//   - QueryResult: a ranked candidate carrying stage tags and collaboration provenance
//   - SearchRequest/SearchResponse and the A2A collaboration messages
//   - Error: the error taxonomy used to classify and absorb external failures
//
// # Hierarchy Levels
//
// Nodes sit at one of four levels. The searchable level (Paragraph by default) carries a
// content embedding; nodes at or below it are leaf content nodes, nodes above it are
// structural ancestors with title-only content.
//
// # Error Taxonomy
//
// External failures are wrapped in *Error with a Kind, and can be tested with errors.Is:
//
//	if errors.Is(err, types.ErrStoreUnavailable) {
//	    // treat as zero results for this sub-query
//	}
package types
