package prompts

import (
	"fmt"
	"strings"

	"github.com/soundprediction/lexigraph/pkg/nlp"
	"github.com/soundprediction/lexigraph/pkg/types"
)

// DefaultConfidence is used when the judge omits a confidence value.
const DefaultConfidence = 0.5

// AssessmentResponse is the decoded answer to the assess prompt. Pointer fields
// distinguish a missing value from an explicit false or zero.
type AssessmentResponse struct {
	CanAnswer  *bool    `json:"can_answer"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Assessment is a validated assessment with defaults applied.
type Assessment struct {
	CanAnswer  bool
	Confidence float64
	Reason     string
}

// ParseAssessment decodes and validates an assess response. A missing can_answer
// defaults to true and a missing confidence to DefaultConfidence; confidence is
// clamped to [0,1].
func ParseAssessment(content string) (Assessment, error) {
	var raw AssessmentResponse
	if err := nlp.ParseJSON(content, &raw); err != nil {
		return Assessment{}, err
	}

	out := Assessment{CanAnswer: true, Confidence: DefaultConfidence, Reason: strings.TrimSpace(raw.Reason)}
	if raw.CanAnswer != nil {
		out.CanAnswer = *raw.CanAnswer
	}
	if raw.Confidence != nil {
		out.Confidence = types.ClampUnit(*raw.Confidence)
	}
	return out, nil
}

// CollaborationTarget names a peer and the question to ask it.
type CollaborationTarget struct {
	Domain       string `json:"domain"`
	RefinedQuery string `json:"refined_query"`
}

// CollaborationResponse is the decoded answer to the collaborate prompt.
type CollaborationResponse struct {
	NeedsCollaboration bool                  `json:"needs_collaboration"`
	Targets            []CollaborationTarget `json:"targets"`
	Reason             string                `json:"reason"`
}

// ParseCollaboration decodes a collaborate response. Targets with an empty domain
// are dropped, and a response that needs collaboration but names no usable target
// is reported as not needing it.
func ParseCollaboration(content string) (CollaborationResponse, error) {
	var raw CollaborationResponse
	if err := nlp.ParseJSON(content, &raw); err != nil {
		return CollaborationResponse{}, err
	}

	targets := make([]CollaborationTarget, 0, len(raw.Targets))
	for _, t := range raw.Targets {
		t.Domain = strings.TrimSpace(t.Domain)
		t.RefinedQuery = strings.TrimSpace(t.RefinedQuery)
		if t.Domain == "" {
			continue
		}
		targets = append(targets, t)
	}
	raw.Targets = targets
	if len(targets) == 0 {
		raw.NeedsCollaboration = false
	}
	return raw, nil
}

// SynthesisResponse is the decoded answer to the synthesize prompt.
type SynthesisResponse struct {
	Answer    string `json:"answer"`
	Citations []int  `json:"citations"`
}

// ParseSynthesis decodes a synthesize response. An empty answer is an error.
func ParseSynthesis(content string) (SynthesisResponse, error) {
	var raw SynthesisResponse
	if err := nlp.ParseJSON(content, &raw); err != nil {
		return SynthesisResponse{}, err
	}
	raw.Answer = strings.TrimSpace(raw.Answer)
	if raw.Answer == "" {
		return SynthesisResponse{}, fmt.Errorf("synthesis response has no answer")
	}
	return raw, nil
}
