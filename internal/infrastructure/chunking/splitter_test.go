package chunking

import (
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	s := NewSplitter(100, 0.1)
	if got := s.Chunk(""); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := s.Chunk("   \n\t "); len(got) != 0 {
		t.Fatalf("expected no chunks for whitespace input, got %d", len(got))
	}
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(200, 0.1)
	got := s.Chunk("First sentence. Second sentence.")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(got), got)
	}
	if got[0] != "First sentence. Second sentence." {
		t.Fatalf("unexpected chunk: %q", got[0])
	}
}

func TestChunkRespectsSentenceBoundaries(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "Alpha beta gamma delta one. Epsilon zeta eta theta two. Iota kappa lambda mu three."
	got := s.Chunk(text)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > 40 {
			t.Fatalf("chunk %d exceeds max chars: %q", i, c)
		}
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("chunk %d does not end at a sentence boundary: %q", i, c)
		}
	}
}

func TestChunkNoSentenceLoss(t *testing.T) {
	s := NewSplitter(50, 0.2)
	sentences := []string{
		"The first result was reported in March.",
		"A second group replicated it within a year.",
		"Later work extended the method to thin films.",
		"Stability remained the open problem.",
	}
	got := s.Chunk(strings.Join(sentences, " "))

	joined := strings.Join(got, " ")
	for _, sentence := range sentences {
		if !strings.Contains(joined, sentence) {
			t.Fatalf("sentence lost during chunking: %q", sentence)
		}
	}
}

func TestChunkOverlapSeedsNextChunk(t *testing.T) {
	s := NewSplitter(50, 0.2)
	text := "Aaaa bbbb cccc dddd eeee ffff gggg one. Hhhh iiii jjjj kkkk llll mmmm two."
	got := s.Chunk(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	// The second chunk starts with the tail of the first, then the
	// overflowing sentence.
	overlap := 10 // 50 * 0.2
	tail := got[0][len(got[0])-overlap:]
	if !strings.HasPrefix(got[1], strings.TrimSpace(tail)) {
		t.Fatalf("second chunk %q does not start with overlap tail %q", got[1], tail)
	}
	if !strings.Contains(got[1], "two.") {
		t.Fatalf("second chunk lost the overflowing sentence: %q", got[1])
	}
}

func TestChunkHardSplitsOversizedSentence(t *testing.T) {
	s := NewSplitter(20, 0.1)
	long := strings.Repeat("x", 55) + "."
	got := s.Chunk(long)
	if len(got) != 3 {
		t.Fatalf("expected 3 hard-split slices, got %d: %v", len(got), got)
	}
	var total int
	for i, c := range got {
		if len([]rune(c)) > 20 {
			t.Fatalf("slice %d exceeds max chars: %q", i, c)
		}
		total += len([]rune(c))
	}
	if total != 56 {
		t.Fatalf("hard split lost characters: got %d of 56", total)
	}
}

func TestNewSplitterNormalizesBadParams(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.MaxChars <= 0 {
		t.Fatalf("max chars not defaulted: %d", s.MaxChars)
	}
	if s.OverlapFraction != 0 {
		t.Fatalf("negative overlap not clamped: %f", s.OverlapFraction)
	}
	s = NewSplitter(100, 1.5)
	if s.OverlapFraction >= 1 {
		t.Fatalf("overlap fraction not clamped below 1: %f", s.OverlapFraction)
	}
}
