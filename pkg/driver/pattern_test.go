package driver

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternExpressionBoundaries(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"article 17", "Labor Standards Act > Article 17 > Paragraph 1", true},
		{"article 17", "Article17", true},
		{"article 17", "Labor Standards Act > Article 170", false},
		{"article 17", "Particle 17", false},
		{"paragraph 2", "Article 3 > Paragraph 2", true},
		{"제17조", "근로기준법 제17조 제1항", true},
		{"제17조", "근로기준법 제 17 조", true},
		{"제17조", "근로기준법 제170조", false},
		{"제17조", "근로기준법 제17조의2", true}, // no lookahead in RE2
		{"제17조의2", "근로기준법 제17조 제1항", false},
		{"section 5", "§ 5 Section 5", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.text, func(t *testing.T) {
			re := regexp.MustCompile(PatternExpression(tt.pattern))
			assert.Equal(t, tt.want, re.MatchString(tt.text))
		})
	}
}

func TestPatternExpressionEmpty(t *testing.T) {
	assert.Equal(t, "", PatternExpression("   "))
}
