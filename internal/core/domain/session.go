package domain

import "time"

// Intent is the closed tag set produced by intent classification.
type Intent string

const (
	IntentUnknown             Intent = ""
	IntentLiteratureReview    Intent = "literature_review"
	IntentMaterialsResearch   Intent = "materials_research"
	IntentComparativeAnalysis Intent = "comparative_analysis"
	IntentMedicalDiagnosis    Intent = "medical_diagnosis"
	IntentGeneralResearch     Intent = "general_research"
	IntentDataExtraction      Intent = "data_extraction"
	IntentOutOfScope          Intent = "out_of_scope"
)

// ValidIntents lists every tag the classifier may emit. Anything else is
// coerced to general_research.
var ValidIntents = []Intent{
	IntentLiteratureReview,
	IntentMaterialsResearch,
	IntentComparativeAnalysis,
	IntentMedicalDiagnosis,
	IntentGeneralResearch,
	IntentDataExtraction,
	IntentOutOfScope,
}

// SourceID identifies one external document source.
type SourceID string

const (
	SourceArxiv           SourceID = "arxiv"
	SourceOpenAlex        SourceID = "openalex"
	SourcePubMed          SourceID = "pubmed"
	SourceSemanticScholar SourceID = "semanticscholar"
	SourceMaterials       SourceID = "materials"
)

// BroadCoverageSources are unioned into the active set when a refinement
// cycle reports a data-coverage gap.
var BroadCoverageSources = []SourceID{SourceOpenAlex, SourceSemanticScholar}

// SourceKind distinguishes free text that must be chunked and ranked from
// already fact-shaped records that bypass ranking entirely.
type SourceKind string

const (
	KindFreeText   SourceKind = "free_text"
	KindStructured SourceKind = "structured"
)

// TieredQueries maps a precision-tier label (strict, moderate, broad,
// simple) to a query string for one source.
type TieredQueries map[string]string

// SourceTiers returns the precision tiers a source is queried with, most
// precise first. Fetchers walk them in order and stop at the first tier
// that yields results.
func SourceTiers(id SourceID) []string {
	switch id {
	case SourceArxiv, SourcePubMed:
		return []string{"strict", "moderate", "broad"}
	case SourceSemanticScholar:
		return []string{"strict", "moderate"}
	default:
		return []string{"simple"}
	}
}

// RawDocument is one record returned by a source fetcher. Text may be an
// abstract; Locator, when present, points at the full document.
type RawDocument struct {
	Text     string            `json:"text"`
	Kind     SourceKind        `json:"kind"`
	Source   SourceID          `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Locator returns the URL worth downloading for this record, preferring a
// direct document link over the landing page.
func (d RawDocument) Locator() string {
	if u := d.Metadata["pdf_url"]; u != "" {
		return u
	}
	return d.Metadata["url"]
}

// Chunk is a bounded slice of one source document's extracted text.
// ChunkIndex is the zero-based position within its DocID group.
type Chunk struct {
	ChunkID    string   `json:"chunk_id"`
	DocID      string   `json:"doc_id"`
	ChunkIndex int      `json:"chunk_index"`
	Text       string   `json:"text"`
	Source     SourceID `json:"source"`
	Locator    string   `json:"locator,omitempty"`
}

// SessionRecord is the single mutable state object threaded through one
// research request. The orchestrator owns it; a dispatched capability may
// read and write it for the duration of that dispatch only.
type SessionRecord struct {
	SessionID string `json:"session_id"`

	RawQuery        string   `json:"raw_query"`
	NormalizedQuery string   `json:"normalized_query"`
	SearchTerm      string   `json:"search_term"`
	Intent          Intent   `json:"intent"`
	Constraints     []string `json:"constraints"`

	Plan          []string                   `json:"plan"`
	ActiveSources []SourceID                 `json:"active_sources"`
	Queries       map[SourceID]TieredQueries `json:"queries"`

	RawDocuments []RawDocument `json:"raw_documents"`
	Chunks       []Chunk       `json:"chunks"`

	AssembledContext string `json:"assembled_context"`

	Report          string          `json:"report"`
	ReportReady     bool            `json:"report_ready"`
	NeedsRefinement bool            `json:"needs_refinement"`
	RefinementClass RefinementClass `json:"refinement_class,omitempty"`
	RefinementWhy   string          `json:"refinement_why,omitempty"`
	Refinements     int             `json:"refinements"`
	Refining        bool            `json:"refining"`

	Visited []string `json:"visited"`

	// CycleStart is the Visited offset at which the current fetch cycle
	// began. A re-plan bumps it so sources fetch again.
	CycleStart int `json:"cycle_start"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSessionRecord starts an empty record for one raw query.
func NewSessionRecord(sessionID, rawQuery string) *SessionRecord {
	return &SessionRecord{
		SessionID: sessionID,
		RawQuery:  rawQuery,
		Queries:   make(map[SourceID]TieredQueries),
		CreatedAt: time.Now().UTC(),
	}
}

// Visit appends a breadcrumb used for diagnostics and per-cycle source
// bookkeeping.
func (r *SessionRecord) Visit(step string) {
	r.Visited = append(r.Visited, step)
}

// HasVisited reports whether a breadcrumb was logged since the given offset.
// Refinement cycles record the offset at which the cycle began so that
// source fetches re-run after a re-plan.
func (r *SessionRecord) HasVisited(step string, since int) bool {
	if since < 0 {
		since = 0
	}
	for i := since; i < len(r.Visited); i++ {
		if r.Visited[i] == step {
			return true
		}
	}
	return false
}

// SourceActive reports whether the source was selected for this run.
func (r *SessionRecord) SourceActive(id SourceID) bool {
	for _, s := range r.ActiveSources {
		if s == id {
			return true
		}
	}
	return false
}

// AddSources unions the given sources into the active set, preserving order
// of first appearance.
func (r *SessionRecord) AddSources(ids ...SourceID) {
	for _, id := range ids {
		if !r.SourceActive(id) {
			r.ActiveSources = append(r.ActiveSources, id)
		}
	}
}

// ResearchResult is what a completed session hands back to the caller.
type ResearchResult struct {
	SessionID   string `json:"session_id"`
	Report      string `json:"report"`
	Refused     bool   `json:"refused"`
	Refinements int    `json:"refinements"`
	Dispatches  int    `json:"dispatches"`
	Documents   int    `json:"documents"`
	Chunks      int    `json:"chunks"`
}

// TranscriptEntry is one append-only observability row for UI replay. It
// never feeds back into routing decisions.
type TranscriptEntry struct {
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"`
	Message    string    `json:"message"`
	Capability string    `json:"capability"`
	CreatedAt  time.Time `json:"created_at"`
}
