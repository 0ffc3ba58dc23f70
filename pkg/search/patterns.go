package search

import (
	"regexp"
	"strings"
)

type structuralPattern struct {
	re        *regexp.Regexp
	canonical func(m []string) string
}

// structuralPatterns are tried in order; the first match wins.
var structuralPatterns = []structuralPattern{
	{
		re: regexp.MustCompile(`제\s*(\d+)\s*조(?:\s*의\s*(\d+))?`),
		canonical: func(m []string) string {
			if m[2] != "" {
				return "제" + m[1] + "조의" + m[2]
			}
			return "제" + m[1] + "조"
		},
	},
	{
		re:        regexp.MustCompile(`(?i)\b(?:article|art\.)\s*(\d+)\b`),
		canonical: func(m []string) string { return "article " + m[1] },
	},
	{
		re:        regexp.MustCompile(`(?i)(?:\bsection|\bsec\.|§)\s*(\d+)\b`),
		canonical: func(m []string) string { return "section " + m[1] },
	},
	{
		re:        regexp.MustCompile(`(?i)\b(?:paragraph|para\.)\s*(\d+)\b`),
		canonical: func(m []string) string { return "paragraph " + m[1] },
	},
}

// ExtractPattern returns the canonical structural reference in query, or "" when the
// query carries none.
func ExtractPattern(query string) string {
	q := strings.TrimSpace(query)
	for _, p := range structuralPatterns {
		if m := p.re.FindStringSubmatch(q); m != nil {
			return p.canonical(m)
		}
	}
	return ""
}
