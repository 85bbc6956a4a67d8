// Package usecase holds the research orchestrator: a hub-and-spoke loop
// that routes one session record through a closed set of capabilities
// until a report is accepted or the dispatch budget runs out.
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

// Config bounds one research session.
type Config struct {
	MaxRefinements      int
	MaxDispatches       int
	RetrievalK          int
	MaxContextChunks    int
	SimilarityThreshold float64
	RerankThreshold     float64
}

func (c Config) normalized() Config {
	if c.MaxRefinements <= 0 {
		c.MaxRefinements = 2
	}
	if c.MaxDispatches <= 0 {
		c.MaxDispatches = 40
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = 30
	}
	if c.MaxContextChunks <= 0 {
		c.MaxContextChunks = 8
	}
	return c
}

// Deps wires the orchestrator to its outbound ports. Reranker, Transcript
// and Observer may be nil; IndexFactory must produce a fresh index per
// session so one request never sees another's vectors.
type Deps struct {
	Planner      ports.QueryPlanner
	Writer       ports.ReportWriter
	Evaluator    ports.ReportEvaluator
	Fetchers     map[domain.SourceID]ports.SourceFetcher
	Acquirer     ports.ContentAcquirer
	Chunker      ports.Chunker
	IndexFactory func() ports.VectorIndex
	Reranker     ports.Reranker
	Transcript   ports.TranscriptStore
	Observer     Observer
}

// Observer receives orchestration events, typically for metrics. All
// methods must be cheap and non-blocking.
type Observer interface {
	SessionStarted()
	SessionFinished(outcome string, duration time.Duration, refinements int)
	CapabilityDispatched(capability string)
	AcquireFailed(source string)
	ChunksIndexed(count int)
	ContextAssembled(kept int)
}

type Research struct {
	deps Deps
	cfg  Config
}

func NewResearch(deps Deps, cfg Config) *Research {
	return &Research{deps: deps, cfg: cfg.normalized()}
}

// DecideNext picks the next capability for the record. It is a pure
// function of the record: same record, same answer. Ordering encodes the
// pipeline; refinement routing preempts it.
func DecideNext(rec *domain.SessionRecord, maxRefinements int) domain.Capability {
	if rec.Intent == domain.IntentOutOfScope {
		if rec.Report == "" {
			return domain.Capability{Kind: domain.CapabilityWriteReport}
		}
		return domain.Capability{Kind: domain.CapabilityTerminate}
	}
	if rec.ReportReady {
		return domain.Capability{Kind: domain.CapabilityTerminate}
	}
	if rec.NeedsRefinement {
		if rec.Refinements >= maxRefinements {
			return domain.Capability{Kind: domain.CapabilityTerminate}
		}
		switch rec.RefinementClass {
		case domain.RefineDataCoverageGap:
			return domain.Capability{Kind: domain.CapabilityPlan}
		case domain.RefineExtractionFail:
			return domain.Capability{Kind: domain.CapabilityAcquire}
		case domain.RefineRelevanceGap:
			return domain.Capability{Kind: domain.CapabilityBuildContext}
		default:
			return domain.Capability{Kind: domain.CapabilityWriteReport}
		}
	}
	if rec.NormalizedQuery == "" {
		return domain.Capability{Kind: domain.CapabilityNormalizeQuery}
	}
	if rec.Intent == domain.IntentUnknown {
		return domain.Capability{Kind: domain.CapabilityClassifyIntent}
	}
	if len(rec.Plan) == 0 {
		return domain.Capability{Kind: domain.CapabilityPlan}
	}
	if len(rec.Queries) == 0 {
		return domain.Capability{Kind: domain.CapabilityGenerateQueries}
	}
	for _, src := range rec.ActiveSources {
		step := domain.Capability{Kind: domain.CapabilityFetchSource, Source: src}
		if !rec.HasVisited(step.String(), rec.CycleStart) {
			return step
		}
	}
	if len(rec.Chunks) == 0 || !rec.HasVisited(domain.CapabilityAcquire.String(), rec.CycleStart) {
		return domain.Capability{Kind: domain.CapabilityAcquire}
	}
	if rec.AssembledContext == "" {
		return domain.Capability{Kind: domain.CapabilityBuildContext}
	}
	if rec.Report == "" {
		return domain.Capability{Kind: domain.CapabilityWriteReport}
	}
	return domain.Capability{Kind: domain.CapabilityEvaluate}
}

// Run executes one research session to completion. Capability failures
// degrade the record instead of aborting; only context cancellation stops
// the loop early.
func (r *Research) Run(ctx context.Context, sessionID, query string) (*domain.ResearchResult, error) {
	rec := domain.NewSessionRecord(sessionID, query)
	index := r.deps.IndexFactory()

	outcome := "error"
	start := time.Now()
	if r.deps.Observer != nil {
		r.deps.Observer.SessionStarted()
		defer func() {
			r.deps.Observer.SessionFinished(outcome, time.Since(start), rec.Refinements)
		}()
	}

	r.note(ctx, rec, "user", query, "")

	dispatches := 0
	for dispatches < r.cfg.MaxDispatches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := DecideNext(rec, r.cfg.MaxRefinements)
		if next.Kind == domain.CapabilityTerminate {
			break
		}
		if rec.NeedsRefinement {
			r.beginRefinement(ctx, rec)
		}

		rec.Visit(next.String())
		dispatches++
		if r.deps.Observer != nil {
			r.deps.Observer.CapabilityDispatched(next.String())
		}

		summary, err := r.dispatch(ctx, rec, index, next)
		if err != nil {
			return nil, err
		}
		if summary != "" {
			r.note(ctx, rec, "agent", summary, next.String())
		}
	}

	if rec.Report == "" {
		rec.Report = "Research stopped before a report could be produced."
	}

	outcome = "completed"
	if rec.Intent == domain.IntentOutOfScope {
		outcome = "refused"
	}

	return &domain.ResearchResult{
		SessionID:   rec.SessionID,
		Report:      rec.Report,
		Refused:     rec.Intent == domain.IntentOutOfScope,
		Refinements: rec.Refinements,
		Dispatches:  dispatches,
		Documents:   len(rec.RawDocuments),
		Chunks:      len(rec.Chunks),
	}, nil
}

func (r *Research) dispatch(ctx context.Context, rec *domain.SessionRecord, index ports.VectorIndex, step domain.Capability) (string, error) {
	switch step.Kind {
	case domain.CapabilityNormalizeQuery:
		return r.normalizeQuery(ctx, rec)
	case domain.CapabilityClassifyIntent:
		return r.classifyIntent(ctx, rec)
	case domain.CapabilityPlan:
		return r.plan(ctx, rec)
	case domain.CapabilityGenerateQueries:
		return r.generateQueries(ctx, rec)
	case domain.CapabilityFetchSource:
		return r.fetchSource(ctx, rec, step.Source)
	case domain.CapabilityAcquire:
		return r.acquire(ctx, rec)
	case domain.CapabilityBuildContext:
		return r.buildContext(ctx, rec, index)
	case domain.CapabilityWriteReport:
		return r.writeReport(ctx, rec)
	case domain.CapabilityEvaluate:
		return r.evaluate(ctx, rec)
	default:
		return "", fmt.Errorf("dispatch: unroutable capability %q", step)
	}
}

// beginRefinement consumes the pending refinement verdict and invalidates
// exactly the artifacts downstream of the failure. A data-coverage gap
// widens the source set and restarts the fetch cycle; extraction failures
// drop chunks but keep the fetched documents; relevance gaps keep the
// chunks and rebuild only the context.
func (r *Research) beginRefinement(ctx context.Context, rec *domain.SessionRecord) {
	class := rec.RefinementClass
	why := rec.RefinementWhy

	rec.Refinements++
	rec.Refining = true
	rec.NeedsRefinement = false
	rec.ReportReady = false

	switch class {
	case domain.RefineDataCoverageGap:
		rec.AddSources(domain.BroadCoverageSources...)
		rec.Plan = nil
		rec.Queries = make(map[domain.SourceID]domain.TieredQueries)
		rec.AssembledContext = ""
		rec.Report = ""
		rec.CycleStart = len(rec.Visited)
	case domain.RefineExtractionFail:
		rec.Chunks = nil
		rec.AssembledContext = ""
		rec.Report = ""
	case domain.RefineRelevanceGap:
		rec.AssembledContext = ""
		rec.Report = ""
	default:
		rec.Report = ""
	}

	r.note(ctx, rec, "agent",
		fmt.Sprintf("refinement %d/%d (%s): %s", rec.Refinements, r.cfg.MaxRefinements, class, why),
		domain.CapabilityEvaluate.String())
}

func (r *Research) normalizeQuery(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	normalized, err := r.deps.Planner.NormalizeQuery(ctx, rec.RawQuery)
	if err != nil || strings.TrimSpace(normalized) == "" {
		normalized = strings.TrimSpace(rec.RawQuery)
	}
	rec.NormalizedQuery = normalized
	return "normalized query: " + normalized, nil
}

func (r *Research) classifyIntent(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	intent, constraints, err := r.deps.Planner.ClassifyIntent(ctx, rec.NormalizedQuery)
	if err != nil {
		intent = domain.IntentGeneralResearch
		constraints = nil
	}
	rec.Intent = intent
	rec.Constraints = constraints
	return "classified intent: " + string(intent), nil
}

func (r *Research) plan(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	out, err := r.deps.Planner.BuildPlan(ctx, ports.PlanInput{
		Query:            rec.NormalizedQuery,
		Intent:           rec.Intent,
		Constraints:      rec.Constraints,
		Refining:         rec.Refining,
		RefinementReason: rec.RefinementWhy,
	})
	if err != nil || len(out.Plan) == 0 {
		out = ports.PlanOutput{
			Plan: []string{
				"gather recent publications covering the question",
				"synthesize the collected material into a grounded report",
			},
			Sources: []domain.SourceID{domain.SourceArxiv, domain.SourceOpenAlex, domain.SourceSemanticScholar},
		}
	}
	rec.Plan = out.Plan
	rec.AddSources(out.Sources...)
	return fmt.Sprintf("plan with %d steps, sources %v", len(rec.Plan), rec.ActiveSources), nil
}

func (r *Research) generateQueries(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	out, err := r.deps.Planner.GenerateQueries(ctx, ports.QueryGenInput{
		Query:            rec.NormalizedQuery,
		Constraints:      rec.Constraints,
		Sources:          rec.ActiveSources,
		RefinementReason: rec.RefinementWhy,
	})
	if err != nil || len(out.Queries) == 0 {
		out.Queries = make(map[domain.SourceID]domain.TieredQueries, len(rec.ActiveSources))
		for _, src := range rec.ActiveSources {
			tiers := domain.SourceTiers(src)
			out.Queries[src] = domain.TieredQueries{tiers[0]: rec.NormalizedQuery}
		}
	}
	rec.Queries = out.Queries

	rec.SearchTerm = rec.NormalizedQuery
	if len(out.KeyTerms) > 0 && strings.TrimSpace(out.KeyTerms[0]) != "" {
		rec.SearchTerm = strings.TrimSpace(out.KeyTerms[0])
	}
	return fmt.Sprintf("generated queries for %d sources, search term %q", len(rec.Queries), rec.SearchTerm), nil
}

func (r *Research) note(ctx context.Context, rec *domain.SessionRecord, role, message, capability string) {
	if r.deps.Transcript == nil {
		return
	}
	// Transcript rows are replay-only observability; a failed append must
	// not disturb the session.
	_ = r.deps.Transcript.Append(ctx, domain.TranscriptEntry{
		SessionID:  rec.SessionID,
		Role:       role,
		Message:    message,
		Capability: capability,
		CreatedAt:  time.Now().UTC(),
	})
}
