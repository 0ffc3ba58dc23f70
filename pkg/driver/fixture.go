package driver

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/soundprediction/lexigraph/pkg/types"
	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML document loaded by LoadMemoryStore. Nodes must be listed
// parents first.
type Snapshot struct {
	ContentDimensions  int                    `yaml:"content_dimensions"`
	RelationDimensions int                    `yaml:"relation_dimensions"`
	Nodes              []SnapshotNode         `yaml:"nodes"`
	Relations          []types.RelationalEdge `yaml:"relations"`
	Domains            []SnapshotDomain       `yaml:"domains"`
}

// SnapshotNode is a node with a named level.
type SnapshotNode struct {
	ID            string    `yaml:"id"`
	Level         string    `yaml:"level"`
	Title         string    `yaml:"title"`
	Content       string    `yaml:"content"`
	FullPath      string    `yaml:"full_path"`
	DocumentClass string    `yaml:"document_class"`
	Parent        string    `yaml:"parent"`
	Ordinal       int       `yaml:"ordinal"`
	Embedding     []float32 `yaml:"embedding"`
}

// SnapshotDomain is a domain entry.
type SnapshotDomain struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Slug        string    `yaml:"slug"`
	Description string    `yaml:"description"`
	Members     []string  `yaml:"members"`
	Centroid    []float32 `yaml:"centroid"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// LoadMemoryStore reads a YAML snapshot file into a new MemoryStore.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return ReadMemoryStore(f)
}

// ReadMemoryStore decodes a YAML snapshot into a new MemoryStore.
func ReadMemoryStore(r io.Reader) (*MemoryStore, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap.Build()
}

// Build materializes the snapshot.
func (s *Snapshot) Build() (*MemoryStore, error) {
	if s.ContentDimensions <= 0 || s.RelationDimensions <= 0 {
		return nil, types.NewConfigurationError("snapshot", "content_dimensions and relation_dimensions are required")
	}

	store := NewMemoryStore(s.ContentDimensions, s.RelationDimensions)
	for _, n := range s.Nodes {
		level, ok := types.ParseLevel(n.Level)
		if !ok {
			return nil, fmt.Errorf("node %s: unknown level %q", n.ID, n.Level)
		}
		err := store.AddNode(&types.DocumentNode{
			ID:            n.ID,
			Level:         level,
			Title:         n.Title,
			Content:       n.Content,
			FullPath:      n.FullPath,
			DocumentClass: n.DocumentClass,
			ParentID:      n.Parent,
			Ordinal:       n.Ordinal,
			Embedding:     n.Embedding,
		})
		if err != nil {
			return nil, err
		}
	}
	for i := range s.Relations {
		if err := store.AddRelation(&s.Relations[i]); err != nil {
			return nil, err
		}
	}
	for _, d := range s.Domains {
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		err := store.AddDomain(&types.Domain{
			ID:          d.ID,
			Name:        d.Name,
			Slug:        d.Slug,
			Description: d.Description,
			MemberIDs:   d.Members,
			Centroid:    d.Centroid,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}
