// Package search implements retrieval inside one domain.
//
// Pipeline runs the hybrid search: an exact structural match ("article 17",
// "제17조"), a content-vector search over searchable leaves and a relationship-vector
// search over relational edges, merged by node id.
//
// Expander grows a result set across the document graph from seed results with a
// min-cost frontier. RNE stops at a similarity floor; INE stops after k results.
//
// # Usage
//
//	p, err := search.NewPipeline(store, contentEmbedder, relationEmbedder,
//	    search.WithLogger(logger))
//	res, err := p.Search(ctx, "written employment contract", domain.MemberIDs, 10)
//
//	x := search.NewExpander(store, search.DefaultExpanderConfig())
//	more, err := x.RNE(ctx, res.ContentEmbedding, res.Seeds(5), 0.75, 20)
package search
