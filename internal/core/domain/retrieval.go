package domain

import "strings"

// RankingRegime records which scorer produced a candidate's score. The two
// regimes use incompatible score directions and each applies its own
// acceptance threshold; they must never share one constant.
type RankingRegime int

const (
	// RegimeSimilarity is the index's native cosine similarity (0..1,
	// higher is closer).
	RegimeSimilarity RankingRegime = iota
	// RegimeReranked is the pairwise cross-encoder relevance score
	// (unbounded logit, higher is more relevant).
	RegimeReranked
)

func (r RankingRegime) String() string {
	if r == RegimeReranked {
		return "reranked"
	}
	return "similarity"
}

// ScoredChunk pairs a stored chunk with a score under some ranking regime.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Evaluation is the quality-check verdict on a drafted report.
type Evaluation struct {
	NeedsRefinement bool            `json:"needs_refinement"`
	Class           RefinementClass `json:"class"`
	Reason          string          `json:"reason"`
}

// Refinement triage keyword sets, used only when an evaluation carries a
// free-text reason without a usable class tag.
var (
	dataCoverageTerms = []string{"missing", "data", "search", "papers", "pubmed", "arxiv", "found", "sources", "literature"}
	extractionTerms   = []string{"pdf", "extraction", "parsing", "read"}
	relevanceTerms    = []string{"relevance", "context", "snippets", "rag"}
)

// ClassifyRefinementReason maps a free-text refinement reason onto the
// closed class set by substring matching. Data coverage wins ties, then
// extraction, then relevance, mirroring the order a coverage gap should be
// fixed before re-reading or re-ranking the same material.
func ClassifyRefinementReason(reason string) RefinementClass {
	lower := strings.ToLower(reason)
	match := func(terms []string) bool {
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return true
			}
		}
		return false
	}
	switch {
	case match(dataCoverageTerms):
		return RefineDataCoverageGap
	case match(extractionTerms):
		return RefineExtractionFail
	case match(relevanceTerms):
		return RefineRelevanceGap
	default:
		return RefineOther
	}
}
