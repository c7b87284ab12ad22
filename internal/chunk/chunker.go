// Package chunk splits extracted document text into overlapping,
// boundary-respecting slices sized for embedding.
package chunk

import (
	"regexp"
	"strings"
)

var horizontalWS = regexp.MustCompile(`[ \t]+`)

// Normalize collapses runs of spaces and tabs to a single space and trims
// the ends. Newlines are preserved; paragraph breaks stay usable as chunk
// boundaries.
func Normalize(text string) string {
	return strings.TrimSpace(horizontalWS.ReplaceAllString(text, " "))
}

// Split cuts text into chunks of at most maxChars characters, preferring to
// break at a sentence end, a space, or a newline. Consecutive chunks share
// up to overlap characters of source text. Positions are counted in runes
// so multi-byte characters are never split.
//
// The cursor always moves forward: when a cut would not advance past the
// previous start (overlap >= cut), the overlap is skipped for that step.
func Split(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(Normalize(text))
	n := len(runes)

	var chunks []string
	start := 0

	for start < n {
		end := start + maxChars
		if end > n {
			end = n
		}
		window := runes[start:end]

		// Rightmost boundary candidate found by any rule.
		cut := lastBoundary(window)

		// No boundary, or one so early the chunk would be pathologically
		// small: consume the whole window.
		if cut == -1 || float64(cut) < float64(maxChars)*0.5 {
			cut = len(window)
		}

		if chunk := strings.TrimSpace(string(window[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		if next > n {
			next = n
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the rightmost index in window at which a sentence
// end (". "), a single space, or a newline occurs, or -1 when none does.
// The maximum over the three reverse searches is always the rightmost
// space or newline (a ". " match places a space one position further
// right), so a single backward scan suffices.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == ' ' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
