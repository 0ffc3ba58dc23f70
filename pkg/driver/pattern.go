package driver

import (
	"regexp"
	"strings"
	"unicode"
)

// PatternExpression converts a canonical structural pattern ("article 17", "제17조의2")
// into a case-insensitive regular expression body. Letter and digit runs are separated
// by optional whitespace, and the match must not be preceded by a letter or digit nor
// followed by a digit, so "article 17" never matches "article 170".
//
// The expression uses only syntax shared by RE2 and Java regular expressions, so it can
// be evaluated in process and by Cypher's =~ operator.
func PatternExpression(pattern string) string {
	tokens := tokenize(pattern)
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}

	return `(?i)(?:^|[^\p{L}\p{N}])` + strings.Join(quoted, `\s*`) + `(?:$|[^\p{N}])`
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(PatternExpression(pattern))
}

// tokenize splits s into maximal runs of letters, digits, and single symbols.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	var curClass int

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range strings.TrimSpace(s) {
		var class int
		switch {
		case unicode.IsSpace(r):
			flush()
			curClass = 0
			continue
		case unicode.IsDigit(r):
			class = 1
		case unicode.IsLetter(r):
			class = 2
		default:
			class = 3
		}
		if class != curClass || class == 3 {
			flush()
		}
		cur.WriteRune(r)
		curClass = class
	}
	flush()
	return tokens
}
