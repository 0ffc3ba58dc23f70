package types

import "time"

// Domain is a named partition of the searchable nodes.
type Domain struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Slug        string    `json:"slug,omitempty" yaml:"slug"`
	Description string    `json:"description,omitempty" yaml:"description"`
	MemberIDs   []string  `json:"member_ids" yaml:"member_ids"`
	Centroid    []float32 `json:"-" yaml:"centroid"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
	QueryCount  int64     `json:"query_count" yaml:"query_count"`
}

// MemberCount returns the number of searchable nodes in the domain.
func (d *Domain) MemberCount() int {
	return len(d.MemberIDs)
}

// DomainAssessment is the per-query verdict of one candidate domain.
type DomainAssessment struct {
	DomainID      string  `json:"domain_id"`
	DomainName    string  `json:"domain_name"`
	CanAnswer     bool    `json:"can_answer"`
	Confidence    float64 `json:"confidence"`
	Similarity    float64 `json:"similarity"`
	CombinedScore float64 `json:"combined_score"`
	Reason        string  `json:"reason,omitempty"`
	// Degraded is set when the judgment call failed and defaults were used.
	Degraded bool `json:"degraded,omitempty"`
}
