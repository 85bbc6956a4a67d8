package ports

import (
	"context"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

// TextCompleter is the opaque text-completion service. It may fail; callers
// treat failure as absence of an answer, never as a fatal condition.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// QueryPlanner covers the planning-side LLM capabilities: query cleanup,
// intent classification, plan/source selection and tiered query generation.
type QueryPlanner interface {
	NormalizeQuery(ctx context.Context, raw string) (string, error)
	ClassifyIntent(ctx context.Context, query string) (domain.Intent, []string, error)
	BuildPlan(ctx context.Context, in PlanInput) (PlanOutput, error)
	GenerateQueries(ctx context.Context, in QueryGenInput) (QueryGenOutput, error)
}

// PlanInput carries everything plan generation may condition on.
type PlanInput struct {
	Query            string
	Intent           domain.Intent
	Constraints      []string
	Refining         bool
	RefinementReason string
}

// PlanOutput is the generated plan plus the chosen sources.
type PlanOutput struct {
	Plan    []string
	Sources []domain.SourceID
}

// QueryGenInput feeds tiered query generation.
type QueryGenInput struct {
	Query            string
	Constraints      []string
	Sources          []domain.SourceID
	RefinementReason string
}

// QueryGenOutput maps each active source to its tier queries; KeyTerms are
// extracted literal terms (formulas, named entities), first one becomes the
// session's search term.
type QueryGenOutput struct {
	Queries  map[domain.SourceID]domain.TieredQueries
	KeyTerms []string
}

// ReportWriter drafts the final report from the assembled context.
type ReportWriter interface {
	WriteReport(ctx context.Context, in ReportInput) (string, error)
}

// ReportInput is the bounded context handed to report writing.
type ReportInput struct {
	Query       string
	Plan        []string
	Context     string
	Constraints []string
}

// ReportEvaluator judges a drafted report against the plan and emits a
// closed-class refinement verdict.
type ReportEvaluator interface {
	Evaluate(ctx context.Context, query string, plan []string, report string) (domain.Evaluation, error)
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores (query, text) pairs; higher is more relevant. Optional:
// a nil Reranker means the index's native ordering is used.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// VectorIndex maintains embeddings paired 1:1 with their chunk records.
// Add skips exact-text duplicates; Search returns at most k entries ordered
// best-first under cosine similarity; an empty index returns an empty slice.
type VectorIndex interface {
	Add(ctx context.Context, chunks []domain.Chunk) (int, error)
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
	Chunks() []domain.Chunk
	Len() int
	Reset() error
}

// SourceFetcher queries one external document source. A fetcher that lacks
// usable input declines to run by returning an empty slice; network and
// parse errors are local to the fetcher and also surface as empty results.
type SourceFetcher interface {
	ID() domain.SourceID
	Fetch(ctx context.Context, queries domain.TieredQueries, searchTerm string) ([]domain.RawDocument, error)
}

// ContentAcquirer downloads one locator and extracts plain text. It fails
// closed: an error or empty text means "skip this locator", never "abort the
// session".
type ContentAcquirer interface {
	Acquire(ctx context.Context, locator string) (string, error)
}

// Chunker splits plain text into bounded, overlapping windows.
type Chunker interface {
	Chunk(text string) []string
}

// TranscriptStore is the append-only observability sink for session replay.
type TranscriptStore interface {
	Append(ctx context.Context, entry domain.TranscriptEntry) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error)
}

// JobQueue decouples research request intake from execution.
type JobQueue interface {
	PublishResearchRequested(ctx context.Context, sessionID, query string) error
	SubscribeResearchRequested(ctx context.Context, handler func(ctx context.Context, sessionID, query string) error) error
}
