package domain

import "fmt"

// CapabilityKind is the closed set of work units the orchestrator can
// dispatch to. Adding one is a compile-time change: the dispatcher switches
// exhaustively over this enumeration.
type CapabilityKind int

const (
	CapabilityTerminate CapabilityKind = iota
	CapabilityNormalizeQuery
	CapabilityClassifyIntent
	CapabilityPlan
	CapabilityGenerateQueries
	CapabilityFetchSource
	CapabilityAcquire
	CapabilityBuildContext
	CapabilityWriteReport
	CapabilityEvaluate
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilityTerminate:
		return "terminate"
	case CapabilityNormalizeQuery:
		return "normalize_query"
	case CapabilityClassifyIntent:
		return "classify_intent"
	case CapabilityPlan:
		return "plan"
	case CapabilityGenerateQueries:
		return "generate_queries"
	case CapabilityFetchSource:
		return "fetch_source"
	case CapabilityAcquire:
		return "acquire"
	case CapabilityBuildContext:
		return "build_context"
	case CapabilityWriteReport:
		return "write_report"
	case CapabilityEvaluate:
		return "evaluate"
	default:
		return fmt.Sprintf("capability(%d)", int(k))
	}
}

// Capability is one dispatch target. Source is set only for
// CapabilityFetchSource.
type Capability struct {
	Kind   CapabilityKind
	Source SourceID
}

func (c Capability) String() string {
	if c.Kind == CapabilityFetchSource {
		return c.Kind.String() + ":" + string(c.Source)
	}
	return c.Kind.String()
}

// RefinementClass is the closed triage produced by the report evaluator.
// It replaces free-text keyword guessing as the primary routing signal;
// ClassifyRefinementReason remains as the fallback for plain-text reasons.
type RefinementClass string

const (
	RefineNone            RefinementClass = ""
	RefineDataCoverageGap RefinementClass = "data_coverage"
	RefineExtractionFail  RefinementClass = "extraction"
	RefineRelevanceGap    RefinementClass = "relevance"
	RefineOther           RefinementClass = "other"
)
