package nlp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

var (
	thinkTags  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFences = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
)

// RemoveThinkTags strips reasoning blocks some models emit before the answer.
func RemoveThinkTags(input string) string {
	return thinkTags.ReplaceAllString(input, "")
}

// ParseJSON decodes a model response into target. Reasoning blocks and markdown
// fences are removed and malformed JSON is repaired before decoding.
func ParseJSON(content string, target any) error {
	cleaned := strings.TrimSpace(RemoveThinkTags(content))
	if m := codeFences.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	if cleaned == "" {
		return NewEmptyResponseError("response contained no JSON")
	}

	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("failed to repair JSON response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}
