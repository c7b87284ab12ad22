package chunk

import (
	"regexp"
	"strings"
)

var allWS = regexp.MustCompile(`\s+`)

// Clean prepares chunk content for persistence: NUL bytes and control
// characters other than standard whitespace are stripped, and whitespace
// runs collapse to a single space. Embeddings are computed before this
// runs; only the stored text is affected.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 {
			continue
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		if r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(allWS.ReplaceAllString(b.String(), " "))
}
