package chunking

import (
	"regexp"
	"strings"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	sentenceRE   = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
)

// Splitter packs whole sentences into windows of at most MaxChars
// characters. Adjacent windows share the trailing OverlapFraction of the
// previous window so that context straddling a boundary survives retrieval.
type Splitter struct {
	MaxChars        int
	OverlapFraction float64
}

func NewSplitter(maxChars int, overlapFraction float64) *Splitter {
	if maxChars <= 0 {
		maxChars = 1750
	}
	if overlapFraction < 0 {
		overlapFraction = 0
	}
	if overlapFraction >= 1 {
		overlapFraction = 0.25
	}
	return &Splitter{
		MaxChars:        maxChars,
		OverlapFraction: overlapFraction,
	}
}

// Chunk splits text into sentence-boundary-respecting windows. A single
// sentence longer than MaxChars is hard-split into fixed-size slices with no
// overlap. Empty input yields nil.
func (s *Splitter) Chunk(text string) []string {
	text = strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	overlap := int(float64(s.MaxChars) * s.OverlapFraction)
	var chunks []string
	var current string

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	for _, sentence := range splitSentences(text) {
		runes := []rune(sentence)
		if len(runes) > s.MaxChars {
			flush()
			current = ""
			for i := 0; i < len(runes); i += s.MaxChars {
				end := i + s.MaxChars
				if end > len(runes) {
					end = len(runes)
				}
				chunks = append(chunks, strings.TrimSpace(string(runes[i:end])))
			}
			continue
		}

		if len([]rune(current))+len(runes)+1 <= s.MaxChars {
			if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
			continue
		}

		flush()
		current = seedOverlap(current, overlap) + sentence
	}

	flush()
	return chunks
}

// seedOverlap returns the trailing overlap characters of the closed chunk,
// with a separating space, to prefix the next chunk.
func seedOverlap(closed string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(closed)
	if len(runes) <= overlap {
		return ""
	}
	return string(runes[len(runes)-overlap:]) + " "
}

// splitSentences cuts on terminal punctuation followed by whitespace. Text
// after the last terminal mark is kept as a final sentence.
func splitSentences(text string) []string {
	matches := sentenceRE.FindAllStringSubmatchIndex(text, -1)
	var out []string
	last := 0
	for _, m := range matches {
		sentence := strings.TrimSpace(text[m[2]:m[3]])
		if sentence != "" {
			out = append(out, sentence)
		}
		last = m[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
