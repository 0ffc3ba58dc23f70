package search

import (
	"sort"
	"strings"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// mergeSet unions results by node id. The zero value is ready to use.
type mergeSet struct {
	index map[string]int
	items []types.QueryResult
}

// add merges results: stage tags are unioned, the maximum similarity is kept and
// collaboration provenance, once attached, is never dropped.
func (m *mergeSet) add(results ...types.QueryResult) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	for _, r := range results {
		i, ok := m.index[r.NodeID]
		if !ok {
			r.Stages = append([]types.Stage(nil), r.Stages...)
			m.index[r.NodeID] = len(m.items)
			m.items = append(m.items, r)
			continue
		}
		cur := &m.items[i]
		cur.AddStages(r.Stages...)
		if r.Similarity > cur.Similarity {
			cur.Similarity = r.Similarity
		}
		if r.Provenance != nil {
			cur.Provenance = r.Provenance
		}
		if cur.Heading == "" {
			cur.Heading = r.Heading
		}
		if cur.Node == nil {
			cur.Node = r.Node
		}
	}
}

func (m *mergeSet) ordered() []types.QueryResult {
	return m.items
}

func (m *mergeSet) sorted() []types.QueryResult {
	out := append([]types.QueryResult(nil), m.items...)
	SortBySimilarity(out)
	return out
}

// Merge unions result lists in order and returns them sorted by similarity descending.
func Merge(lists ...[]types.QueryResult) []types.QueryResult {
	var m mergeSet
	for _, l := range lists {
		m.add(l...)
	}
	return m.sorted()
}

// SortBySimilarity sorts results by similarity descending, keeping the input order
// among equal similarities.
func SortBySimilarity(results []types.QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}

// IsAdministrative reports whether the result belongs to one of classes, matched
// case-insensitively on the node's document class or its structural path.
func IsAdministrative(r types.QueryResult, classes []string) bool {
	path := strings.ToLower(r.FullPath)
	docClass := ""
	if r.Node != nil {
		docClass = strings.ToLower(r.Node.DocumentClass)
	}
	for _, c := range classes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if docClass == c || strings.Contains(path, c) {
			return true
		}
	}
	return false
}

// FilterAdministrative drops results of administrative classes unless every result
// is administrative, in which case results is returned unchanged.
func FilterAdministrative(results []types.QueryResult, classes []string) []types.QueryResult {
	if len(classes) == 0 {
		return results
	}
	kept := make([]types.QueryResult, 0, len(results))
	for _, r := range results {
		if !IsAdministrative(r, classes) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return results
	}
	return kept
}
