package types

import "strings"

// Level is the depth of a node in the containment hierarchy.
type Level int

const (
	// LevelStatute is the root of a document.
	LevelStatute Level = iota
	// LevelArticle groups paragraphs.
	LevelArticle
	// LevelParagraph is the default searchable level.
	LevelParagraph
	// LevelItem is the deepest level.
	LevelItem
)

// String returns the lower case name of the level.
func (l Level) String() string {
	switch l {
	case LevelStatute:
		return "statute"
	case LevelArticle:
		return "article"
	case LevelParagraph:
		return "paragraph"
	case LevelItem:
		return "item"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name back to its Level. Unknown names return false.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "statute", "law":
		return LevelStatute, true
	case "article":
		return LevelArticle, true
	case "paragraph":
		return LevelParagraph, true
	case "item":
		return LevelItem, true
	}
	return 0, false
}

// EdgeType identifies how a neighbor was reached from a node.
type EdgeType string

const (
	// EdgeParent points from a node to its immediate container.
	EdgeParent EdgeType = "parent"
	// EdgeChild points from a node to one of its immediate children.
	EdgeChild EdgeType = "child"
	// EdgeSibling connects leaves sharing an immediate parent.
	EdgeSibling EdgeType = "sibling"
	// EdgeCrossReference is a relational edge citing another provision.
	EdgeCrossReference EdgeType = "cross-reference"
	// EdgeImplements is a relational edge from an implementing provision.
	EdgeImplements EdgeType = "implements"
)

// IsContainment reports whether the edge follows the containment hierarchy.
func (e EdgeType) IsContainment() bool {
	return e == EdgeParent || e == EdgeChild
}

// IsRelational reports whether the edge is a RelationalEdge.
func (e EdgeType) IsRelational() bool {
	return e == EdgeCrossReference || e == EdgeImplements
}

// DocumentNode represents a node in the document hierarchy.
type DocumentNode struct {
	ID            string    `json:"id" yaml:"id"`
	Level         Level     `json:"level" yaml:"level"`
	Title         string    `json:"title,omitempty" yaml:"title"`
	Content       string    `json:"content,omitempty" yaml:"content"`
	FullPath      string    `json:"full_path" yaml:"full_path"`
	DocumentClass string    `json:"document_class,omitempty" yaml:"document_class"`
	ParentID      string    `json:"parent_id,omitempty" yaml:"parent_id"`
	Ordinal       int       `json:"ordinal" yaml:"ordinal"`
	Embedding     []float32 `json:"-" yaml:"embedding"`
}

// Validate checks that the node has an identifier.
func (n *DocumentNode) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// IsLeafContent reports whether the node sits at or below the searchable level.
func (n *DocumentNode) IsLeafContent(searchable Level) bool {
	return n != nil && n.Level >= searchable
}

// IsSearchable reports whether the node is a searchable leaf, that is a node at the
// searchable level carrying a content embedding.
func (n *DocumentNode) IsSearchable(searchable Level) bool {
	return n != nil && n.Level == searchable && len(n.Embedding) > 0
}

// Snippet returns the text used to represent the node in results.
func (n *DocumentNode) Snippet() string {
	if n.Content != "" {
		return n.Content
	}
	return n.Title
}

var unsetTitles = map[string]struct{}{
	"":      {},
	"unset": {},
	"none":  {},
	"null":  {},
	"n/a":   {},
	"-":     {},
}

// HasTitle reports whether the node carries a real title rather than a sentinel.
func (n *DocumentNode) HasTitle() bool {
	if n == nil {
		return false
	}
	_, unset := unsetTitles[strings.ToLower(strings.TrimSpace(n.Title))]
	return !unset
}

// RelationalEdge is a directed non-hierarchical relation between searchable nodes. Its
// embedding lives in the relation space, independent from node content embeddings.
type RelationalEdge struct {
	ID        string    `json:"id" yaml:"id"`
	SourceID  string    `json:"source_id" yaml:"source_id"`
	TargetID  string    `json:"target_id" yaml:"target_id"`
	Type      EdgeType  `json:"type" yaml:"type"`
	Context   string    `json:"context,omitempty" yaml:"context"`
	Embedding []float32 `json:"-" yaml:"embedding"`
}
