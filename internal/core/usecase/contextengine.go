package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

const contextDelimiter = "\n---\n"

// Phrases that mark a chunk as boilerplate from academic landing pages.
// Such chunks survive only when they also contain the session's literal
// search term.
var academicNoisePhrases = []string{"full text", "arxiv paper", "pubmed abstract"}

// buildContext assembles the bounded evidence window for report writing:
// structured records pass through untouched, free-text chunks go through
// vector search, optional cross-encoder reranking, neighborhood expansion
// and a noise gate. When every stage comes up empty the raw chunks serve
// as a last resort so the writer never starves.
func (r *Research) buildContext(ctx context.Context, rec *domain.SessionRecord, index ports.VectorIndex) (string, error) {
	structured := carveStructured(rec.RawDocuments)

	kept, err := r.retrieveChunks(ctx, rec, index)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		kept = nil
	}

	if len(kept) == 0 && len(rec.Chunks) > 0 {
		limit := min(len(rec.Chunks), r.cfg.MaxContextChunks)
		for _, c := range rec.Chunks[:limit] {
			kept = append(kept, c.Text)
		}
	}

	if r.deps.Observer != nil {
		r.deps.Observer.ContextAssembled(len(kept))
	}

	sections := append(structured, kept...)
	if len(sections) == 0 {
		rec.AssembledContext = "No relevant context found."
	} else {
		rec.AssembledContext = strings.Join(sections, contextDelimiter)
	}
	return fmt.Sprintf("assembled context from %d sections (%d structured, %d retrieved)",
		len(sections), len(structured), len(kept)), nil
}

// retrieveChunks runs index, search, rerank, expansion and the noise gate,
// returning at most MaxContextChunks chunk texts.
func (r *Research) retrieveChunks(ctx context.Context, rec *domain.SessionRecord, index ports.VectorIndex) ([]string, error) {
	if len(rec.Chunks) == 0 {
		return nil, nil
	}
	added, err := index.Add(ctx, rec.Chunks)
	if err != nil {
		return nil, err
	}
	if r.deps.Observer != nil {
		r.deps.Observer.ChunksIndexed(added)
	}

	hits, err := index.Search(ctx, rec.NormalizedQuery, r.cfg.RetrievalK)
	if err != nil {
		return nil, err
	}

	// Each ranking regime applies only its own cutoff. Cosine similarity
	// and cross-encoder logits live on different scales. A failing reranker
	// falls back to the similarity ordering the search already produced.
	var seeds []domain.Chunk
	if r.deps.Reranker != nil {
		seeds, err = r.rerankHits(ctx, rec.NormalizedQuery, hits)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			seeds = similaritySeeds(hits, r.cfg.SimilarityThreshold)
		}
	} else {
		seeds = similaritySeeds(hits, r.cfg.SimilarityThreshold)
	}

	expanded := expandNeighborhoods(index.Chunks(), seeds)

	literal := strings.ToLower(strings.TrimSpace(rec.SearchTerm))
	seen := make(map[string]bool, len(expanded))
	var kept []string
	for _, c := range expanded {
		if seen[c.ChunkID] {
			continue
		}
		if !passesKeywordGate(c.Text, literal) {
			continue
		}
		seen[c.ChunkID] = true
		kept = append(kept, c.Text)
		if len(kept) >= r.cfg.MaxContextChunks {
			break
		}
	}
	return kept, nil
}

func similaritySeeds(hits []domain.ScoredChunk, threshold float64) []domain.Chunk {
	var seeds []domain.Chunk
	for _, h := range hits {
		if h.Score >= threshold {
			seeds = append(seeds, h.Chunk)
		}
	}
	return seeds
}

func (r *Research) rerankHits(ctx context.Context, query string, hits []domain.ScoredChunk) ([]domain.Chunk, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	scores, err := r.deps.Reranker.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	rescored := make([]domain.ScoredChunk, 0, len(hits))
	for i, h := range hits {
		if scores[i] >= r.cfg.RerankThreshold {
			rescored = append(rescored, domain.ScoredChunk{Chunk: h.Chunk, Score: scores[i]})
		}
	}
	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].Score > rescored[j].Score })

	seeds := make([]domain.Chunk, len(rescored))
	for i, sc := range rescored {
		seeds[i] = sc.Chunk
	}
	return seeds, nil
}

// expandNeighborhoods widens each seed chunk to its previous and next
// sibling within the same document, keeping seed order.
func expandNeighborhoods(all []domain.Chunk, seeds []domain.Chunk) []domain.Chunk {
	families := make(map[string][]domain.Chunk)
	for _, c := range all {
		families[c.DocID] = append(families[c.DocID], c)
	}
	for id := range families {
		sort.SliceStable(families[id], func(i, j int) bool {
			return families[id][i].ChunkIndex < families[id][j].ChunkIndex
		})
	}

	var expanded []domain.Chunk
	for _, seed := range seeds {
		family := families[seed.DocID]
		if len(family) == 0 {
			continue
		}
		idx := seed.ChunkIndex
		if idx > len(family)-1 {
			idx = len(family) - 1
		}
		lo := max(0, idx-1)
		hi := min(len(family), idx+2)
		expanded = append(expanded, family[lo:hi]...)
	}
	return expanded
}

// passesKeywordGate rejects academic boilerplate chunks unless they carry
// the session's literal search term. An empty literal disables the gate's
// rescue clause in the permissive direction.
func passesKeywordGate(text, literal string) bool {
	lower := strings.ToLower(text)
	noise := false
	for _, phrase := range academicNoisePhrases {
		if strings.Contains(lower, phrase) {
			noise = true
			break
		}
	}
	containsLiteral := true
	if literal != "" {
		containsLiteral = strings.Contains(lower, literal)
	}
	return !(noise && !containsLiteral)
}

func carveStructured(docs []domain.RawDocument) []string {
	var blocks []string
	for _, d := range docs {
		if d.Kind == domain.KindStructured && d.Text != "" {
			blocks = append(blocks, fmt.Sprintf("--- Structured Data (%s) ---\n%s", d.Source, d.Text))
		}
	}
	return blocks
}
