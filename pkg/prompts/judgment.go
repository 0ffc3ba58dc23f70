package prompts

import (
	"fmt"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// SampleRow is one member paragraph shown to the judge during assessment.
type SampleRow struct {
	Path    string `csv:"path"`
	Content string `csv:"content"`
}

// ResultRow is one retrieved result shown to the judge.
type ResultRow struct {
	Ref        int     `csv:"ref"`
	Path       string  `csv:"path"`
	Similarity float64 `csv:"similarity"`
	Content    string  `csv:"content"`
}

// PeerRow describes a domain the primary may collaborate with.
type PeerRow struct {
	Name        string `csv:"name"`
	Description string `csv:"description"`
}

// JudgmentPrompts is the prompt set used by the relevance judge.
type JudgmentPrompts struct {
	Assess      Prompt
	Collaborate Prompt
	Synthesize  Prompt
}

// DefaultJudgmentPrompts returns the built-in prompt set.
func DefaultJudgmentPrompts() JudgmentPrompts {
	return JudgmentPrompts{Assess: assessPrompt, Collaborate: collaboratePrompt, Synthesize: synthesizePrompt}
}

// assessPrompt asks whether a domain's material can answer a query.
//
// Vars: query, domain_name, domain_description, samples ([]SampleRow).
func assessPrompt(v Vars) ([]types.Message, error) {
	sysPrompt := `You are a legal research assistant. You judge whether a collection of statute provisions is able to answer a question.`

	samples, _ := v["samples"].([]SampleRow)
	samplesTSV, err := TSV(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal samples: %w", err)
	}

	domainYAML, err := YAML(map[string]string{
		"name":        v.str("domain_name"),
		"description": v.str("domain_description"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal domain: %w", err)
	}

	userPrompt := fmt.Sprintf(`
<DOMAIN>
%s</DOMAIN>

<SAMPLE_PROVISIONS>
%s
</SAMPLE_PROVISIONS>

<QUESTION>
%s
</QUESTION>

Decide whether provisions from this domain can answer the QUESTION.
Base the decision on the topic of the domain, not only on the samples shown.
SAMPLE_PROVISIONS are provided in TSV (tab-separated values) format.

Respond with a JSON object:
{"can_answer": true|false, "confidence": number between 0 and 1, "reason": "one sentence"}
`, domainYAML, samplesTSV, v.str("query"))

	return chat(sysPrompt, userPrompt), nil
}

// collaboratePrompt asks whether the primary domain should consult peers.
//
// Vars: query, domain_name, results ([]ResultRow), peers ([]PeerRow), max_targets.
func collaboratePrompt(v Vars) ([]types.Message, error) {
	sysPrompt := `You coordinate specialist legal research agents. Each agent covers one area of law. You decide when an agent needs help from other agents.`

	results, _ := v["results"].([]ResultRow)
	resultsTSV, err := TSV(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	peers, _ := v["peers"].([]PeerRow)
	peersTSV, err := TSV(peers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal peers: %w", err)
	}
	maxTargets := v.intOr("max_targets", 2)

	userPrompt := fmt.Sprintf(`
The agent for "%s" retrieved the RESULTS below for the QUESTION.

<QUESTION>
%s
</QUESTION>

<RESULTS>
%s
</RESULTS>

<OTHER_AGENTS>
%s
</OTHER_AGENTS>

If the RESULTS already answer the QUESTION, collaboration is not needed.
Otherwise choose at most %d agents from OTHER_AGENTS by exact name and write, for each,
a question rephrased for that agent's area of law.
RESULTS and OTHER_AGENTS are provided in TSV (tab-separated values) format.

Respond with a JSON object:
{"needs_collaboration": true|false, "targets": [{"domain": "agent name", "refined_query": "question"}], "reason": "one sentence"}
`, v.str("domain_name"), v.str("query"), resultsTSV, peersTSV, maxTargets)

	return chat(sysPrompt, userPrompt), nil
}

// synthesizePrompt turns the top results into a cited narrative answer.
//
// Vars: query, results ([]ResultRow).
func synthesizePrompt(v Vars) ([]types.Message, error) {
	sysPrompt := `You are a legal research assistant. You answer questions using only the provisions you are given and cite them.`

	results, _ := v["results"].([]ResultRow)
	resultsTSV, err := TSV(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}

	userPrompt := fmt.Sprintf(`
<PROVISIONS>
%s
</PROVISIONS>

<QUESTION>
%s
</QUESTION>

Answer the QUESTION in a few sentences using only PROVISIONS.
Cite provisions inline as [ref] using the ref column. If PROVISIONS do not answer the
QUESTION, say so.
PROVISIONS are provided in TSV (tab-separated values) format.

Respond with a JSON object:
{"answer": "text with [ref] citations", "citations": [ref numbers]}
`, resultsTSV, v.str("query"))

	return chat(sysPrompt, userPrompt), nil
}
