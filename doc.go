// Package lexigraph is a hybrid retrieval engine over a hierarchical statute
// corpus stored as a semantic graph.
//
// A query is routed to the domain whose centroid and judged confidence best fit
// it. The domain's worker runs the hybrid pipeline (exact citation match, content
// vector search, relation vector search), expands the best seeds over the graph
// and, when its results look incomplete, asks peer domains for help. Peer results
// are merged with provenance attached.
//
// # Basic Usage
//
// Build an engine from a validated configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine, err := lexigraph.Open(ctx, cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	if err := engine.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	resp, err := engine.Search(ctx, types.SearchRequest{Query: "제17조 근로조건의 명시"})
//
// Components can also be wired by hand with New, which is how tests run the
// engine over an in-memory store.
package lexigraph
