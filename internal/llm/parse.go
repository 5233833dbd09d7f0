package llm

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/connections-insights/internal/resilience"
)

var nullToken = regexp.MustCompile(`(?i)\bNULL\b`)

// TextWithinTags extracts the text between the last <tag> and its closing
// </tag> in a model response, scanning right-to-left and narrowing the
// window up to 5 times. Scanning from the right tolerates preamble text
// that itself mentions the tag. Returns ErrMalformedOutput when no
// non-empty tagged block is found.
func TextWithinTags(s, tag string) (string, error) {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"

	window := len(s)
	for i := 0; i < 5; i++ {
		end := strings.LastIndex(s[:window], closing)
		start := strings.LastIndex(s[:window], open)
		if start >= 0 && end >= start+len(open) {
			if out := strings.TrimSpace(s[start+len(open) : end]); out != "" {
				return out, nil
			}
		}
		if start < 0 {
			break
		}
		window = start
	}
	return "", eris.Wrap(resilience.ErrMalformedOutput, "missing <"+tag+"> block")
}

// CleanJSONString repairs the model's habit of emitting a bare NULL token
// where JSON expects a string, replacing it with an empty string literal.
func CleanJSONString(s string) string {
	return nullToken.ReplaceAllString(s, `""`)
}
