package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

func newContextResearch(index ports.VectorIndex, reranker ports.Reranker, cfg Config) *Research {
	return NewResearch(Deps{
		Planner:      &plannerFake{},
		Writer:       &writerFake{},
		Evaluator:    &evaluatorFake{},
		Fetchers:     map[domain.SourceID]ports.SourceFetcher{},
		Acquirer:     &acquirerFake{},
		Chunker:      chunkerFake{},
		IndexFactory: func() ports.VectorIndex { return index },
		Reranker:     reranker,
	}, cfg)
}

func freeChunk(docID string, idx int, text string) domain.Chunk {
	return domain.Chunk{
		ChunkID:    docID + "-c" + string(rune('0'+idx)),
		DocID:      docID,
		ChunkIndex: idx,
		Text:       text,
		Source:     domain.SourceArxiv,
	}
}

func TestBuildContextStructuredBlocksComeFirst(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "band gap of CsSnI3"
	rec.RawDocuments = []domain.RawDocument{
		{Text: "Material: CsSnI3 (mp-1069538). Stability: stable.", Kind: domain.KindStructured, Source: domain.SourceMaterials},
		{Text: "free text abstract", Kind: domain.KindFreeText, Source: domain.SourceArxiv},
	}
	rec.Chunks = []domain.Chunk{freeChunk("doc-001", 0, "CsSnI3 shows a direct band gap near 1.3 eV.")}

	svc := newContextResearch(&indexFake{}, nil, Config{SimilarityThreshold: 0.35})
	if _, err := svc.buildContext(context.Background(), rec, svc.deps.IndexFactory()); err != nil {
		t.Fatalf("buildContext: %v", err)
	}

	sections := strings.Split(rec.AssembledContext, contextDelimiter)
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2: %q", len(sections), rec.AssembledContext)
	}
	if !strings.HasPrefix(sections[0], "--- Structured Data (materials) ---") {
		t.Errorf("structured block not first: %q", sections[0])
	}
	if !strings.Contains(sections[1], "band gap near 1.3 eV") {
		t.Errorf("retrieved chunk missing: %q", sections[1])
	}
}

func TestBuildContextSimilarityThresholdDropsWeakHits(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	rec.Chunks = []domain.Chunk{
		freeChunk("doc-000", 0, "strongly related passage"),
		freeChunk("doc-001", 0, "barely related passage"),
	}
	index := &indexFake{scores: map[string]float64{
		"doc-000-c0": 0.80,
		"doc-001-c0": 0.10,
	}}

	svc := newContextResearch(index, nil, Config{SimilarityThreshold: 0.35})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	if strings.Contains(rec.AssembledContext, "barely related") {
		t.Errorf("weak hit survived the similarity cutoff: %q", rec.AssembledContext)
	}
	if !strings.Contains(rec.AssembledContext, "strongly related") {
		t.Errorf("strong hit missing: %q", rec.AssembledContext)
	}
}

func TestBuildContextRerankCutoffIgnoresSimilarityScale(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	rec.Chunks = []domain.Chunk{
		freeChunk("doc-000", 0, "cross encoder loves this"),
		freeChunk("doc-001", 0, "cross encoder hates this"),
	}
	// Low cosine score on the chunk the reranker rates highly. Only the
	// rerank cutoff may decide here.
	index := &indexFake{scores: map[string]float64{
		"doc-000-c0": 0.05,
		"doc-001-c0": 0.99,
	}}
	reranker := &rerankerFake{scores: map[string]float64{
		"cross encoder loves this": 4.2,
		"cross encoder hates this": -3.0,
	}}

	svc := newContextResearch(index, reranker, Config{SimilarityThreshold: 0.35, RerankThreshold: 0.1})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	if !strings.Contains(rec.AssembledContext, "loves this") {
		t.Errorf("rerank-approved chunk missing: %q", rec.AssembledContext)
	}
	if strings.Contains(rec.AssembledContext, "hates this") {
		t.Errorf("rerank-rejected chunk survived: %q", rec.AssembledContext)
	}
}

func TestBuildContextRerankFailureFallsBackToSimilarityOrder(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	rec.Chunks = []domain.Chunk{
		freeChunk("doc-000", 0, "weak passage listed first"),
		freeChunk("doc-001", 0, "strong passage by similarity"),
	}
	index := &indexFake{scores: map[string]float64{
		"doc-000-c0": 0.10,
		"doc-001-c0": 0.95,
	}}
	reranker := &rerankerFake{err: errors.New("reranker unavailable")}

	svc := newContextResearch(index, reranker, Config{
		SimilarityThreshold: 0.35,
		RerankThreshold:     0.1,
		MaxContextChunks:    1,
	})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	// The similarity ranking already produced usable candidates; a reranker
	// outage must not degrade past them to the raw chunk order.
	if !strings.Contains(rec.AssembledContext, "strong passage by similarity") {
		t.Errorf("similarity-ranked hit lost on rerank failure: %q", rec.AssembledContext)
	}
	if strings.Contains(rec.AssembledContext, "weak passage listed first") {
		t.Errorf("weak chunk survived the similarity cutoff: %q", rec.AssembledContext)
	}
}

func TestBuildContextNeighborhoodExpansion(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	rec.Chunks = []domain.Chunk{
		freeChunk("doc-000", 0, "intro section"),
		freeChunk("doc-000", 1, "the key finding"),
		freeChunk("doc-000", 2, "method details"),
		freeChunk("doc-000", 3, "unrelated appendix"),
	}
	index := &indexFake{scores: map[string]float64{
		"doc-000-c0": 0.10,
		"doc-000-c1": 0.90,
		"doc-000-c2": 0.10,
		"doc-000-c3": 0.10,
	}}

	svc := newContextResearch(index, nil, Config{SimilarityThreshold: 0.35})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}

	for _, want := range []string{"intro section", "the key finding", "method details"} {
		if !strings.Contains(rec.AssembledContext, want) {
			t.Errorf("neighborhood member %q missing", want)
		}
	}
	if strings.Contains(rec.AssembledContext, "unrelated appendix") {
		t.Errorf("chunk outside the neighborhood survived: %q", rec.AssembledContext)
	}
}

func TestBuildContextFallbackWhenFiltersRemoveEverything(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	rec.SearchTerm = "CsSnI3"
	rec.Chunks = []domain.Chunk{
		freeChunk("doc-000", 0, "Download the full text of this arXiv paper here."),
		freeChunk("doc-001", 0, "Read the PubMed abstract and full text online."),
	}
	index := &indexFake{}

	svc := newContextResearch(index, nil, Config{MaxContextChunks: 8})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	// Everything is noise without the literal term, so the raw chunks come
	// back as a last resort instead of an empty context.
	if !strings.Contains(rec.AssembledContext, "arXiv paper") {
		t.Errorf("fallback did not restore raw chunks: %q", rec.AssembledContext)
	}
}

func TestBuildContextCapsAtMaxChunks(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"
	for i := 0; i < 10; i++ {
		rec.Chunks = append(rec.Chunks, domain.Chunk{
			ChunkID:    freeChunk("doc-000", i, "").ChunkID,
			DocID:      "doc-000",
			ChunkIndex: i,
			Text:       strings.Repeat("x", i+1) + " relevant passage",
			Source:     domain.SourceArxiv,
		})
	}
	index := &indexFake{}

	svc := newContextResearch(index, nil, Config{MaxContextChunks: 3})
	if _, err := svc.buildContext(context.Background(), rec, index); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	sections := strings.Split(rec.AssembledContext, contextDelimiter)
	if len(sections) != 3 {
		t.Errorf("sections = %d, want 3", len(sections))
	}
}

func TestBuildContextEmptySession(t *testing.T) {
	rec := domain.NewSessionRecord("s", "q")
	rec.NormalizedQuery = "topic"

	svc := newContextResearch(&indexFake{}, nil, Config{})
	if _, err := svc.buildContext(context.Background(), rec, svc.deps.IndexFactory()); err != nil {
		t.Fatalf("buildContext: %v", err)
	}
	if rec.AssembledContext != "No relevant context found." {
		t.Errorf("context = %q", rec.AssembledContext)
	}
}

func TestPassesKeywordGate(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		literal string
		want    bool
	}{
		{"plain chunk passes", "CsSnI3 degrades via Sn oxidation.", "cssni3", true},
		{"noise without literal fails", "Download the full text from arXiv.", "cssni3", false},
		{"noise with literal passes", "Full text: CsSnI3 stability study.", "cssni3", true},
		{"noise with empty literal passes", "See the PubMed abstract for details.", "", true},
		{"pubmed boilerplate fails", "The PubMed abstract is available online.", "perovskite", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := passesKeywordGate(tc.text, tc.literal); got != tc.want {
				t.Errorf("passesKeywordGate(%q, %q) = %v, want %v", tc.text, tc.literal, got, tc.want)
			}
		})
	}
}
