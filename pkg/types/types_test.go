package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryResultAddStages(t *testing.T) {
	node := &DocumentNode{ID: "p1", Content: "text"}
	r := NewQueryResult(node, 1.4, StageExact)

	r.AddStages(StageContentVector, StageExact, ExpansionStage(EdgeSibling))

	assert.Equal(t, 1.0, r.Similarity)
	assert.Equal(t, []Stage{StageExact, StageContentVector, "graph-expansion-sibling"}, r.Stages)
	assert.True(t, r.Stages[2].IsExpansion())
	assert.False(t, StageExact.IsExpansion())
}

func TestSearchRequestValidate(t *testing.T) {
	req := SearchRequest{Query: "  "}
	assert.ErrorIs(t, req.Validate(10), ErrEmptyQuery)

	req = SearchRequest{Query: "article 17", Limit: -1}
	assert.ErrorIs(t, req.Validate(10), ErrInvalidLimit)

	req = SearchRequest{Query: "article 17"}
	require.NoError(t, req.Validate(10))
	assert.Equal(t, 10, req.Limit)
}

func TestDocumentNodeTitles(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"", false},
		{"None", false},
		{" unset ", false},
		{"N/A", false},
		{"Purpose", true},
	}
	for _, tt := range tests {
		n := &DocumentNode{ID: "a", Title: tt.title}
		assert.Equal(t, tt.want, n.HasTitle(), tt.title)
	}
}

func TestDocumentNodeLevels(t *testing.T) {
	p := &DocumentNode{ID: "p", Level: LevelParagraph, Embedding: []float32{1}}
	i := &DocumentNode{ID: "i", Level: LevelItem}
	a := &DocumentNode{ID: "a", Level: LevelArticle}

	assert.True(t, p.IsSearchable(LevelParagraph))
	assert.False(t, i.IsSearchable(LevelParagraph))
	assert.True(t, i.IsLeafContent(LevelParagraph))
	assert.False(t, a.IsLeafContent(LevelParagraph))

	lvl, ok := ParseLevel("Paragraph")
	assert.True(t, ok)
	assert.Equal(t, LevelParagraph, lvl)
	assert.Equal(t, "item", LevelItem.String())
}
