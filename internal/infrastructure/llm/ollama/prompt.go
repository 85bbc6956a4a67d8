package ollama

import (
	"fmt"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

func buildNormalizePrompt(raw string) string {
	return `You rewrite research questions into concise, search-ready form.
Fix typos, expand shorthand, drop filler words. Keep chemical formulas,
material names and author names exactly as written. Return only the
rewritten query, no explanation.

Query:
` + raw
}

func buildIntentPrompt(query string) string {
	names := make([]string, 0, len(domain.ValidIntents))
	for _, it := range domain.ValidIntents {
		names = append(names, string(it))
	}
	return fmt.Sprintf(`You classify research queries.
Return strict JSON object with keys:
intent (one of: %s), constraints (array of strings with any explicit
restrictions such as date ranges, material classes or study types).
No markdown, no extra keys.

Query:
%s`, strings.Join(names, ", "), query)
}

func buildPlanPrompt(in ports.PlanInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `You plan literature research.
Return strict JSON object with keys:
plan (array of short step strings), sources (array chosen from: arxiv,
openalex, pubmed, semanticscholar, materials).
No markdown, no extra keys.

Query: %s
Intent: %s
`, in.Query, in.Intent)
	if len(in.Constraints) > 0 {
		fmt.Fprintf(&sb, "Constraints: %s\n", strings.Join(in.Constraints, "; "))
	}
	if in.Refining && in.RefinementReason != "" {
		fmt.Fprintf(&sb, "The previous attempt was judged insufficient: %s\nRevise the plan to close that gap.\n", in.RefinementReason)
	}
	return sb.String()
}

func buildQueryGenPrompt(in ports.QueryGenInput) string {
	specs := make([]string, 0, len(in.Sources))
	for _, s := range in.Sources {
		specs = append(specs, fmt.Sprintf("%s (tiers: %s)", s, strings.Join(domain.SourceTiers(s), ", ")))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, `You write search queries for scholarly APIs.
Return strict JSON object with keys:
queries (object mapping each source name to an object with one query
string per listed tier, strict being the most precise and broad the
loosest), key_terms (array of the most specific terms in the query,
most specific first, chemical formulas before topic phrases).
Sources: %s
No markdown, no extra keys.

Query: %s
`, strings.Join(specs, "; "), in.Query)
	if len(in.Constraints) > 0 {
		fmt.Fprintf(&sb, "Constraints: %s\n", strings.Join(in.Constraints, "; "))
	}
	if in.RefinementReason != "" {
		fmt.Fprintf(&sb, "Earlier queries missed relevant work: %s\nBroaden or rephrase accordingly.\n", in.RefinementReason)
	}
	return sb.String()
}

func buildReportPrompt(in ports.ReportInput) string {
	var sb strings.Builder
	sb.WriteString(`You write research reports grounded strictly in the provided context.
Cite snippets by their bracketed number. If the context does not cover a
claim, say so instead of inventing it.

`)
	fmt.Fprintf(&sb, "Question:\n%s\n\n", in.Query)
	if len(in.Plan) > 0 {
		fmt.Fprintf(&sb, "Research plan:\n%s\n\n", strings.Join(in.Plan, "\n"))
	}
	if len(in.Constraints) > 0 {
		fmt.Fprintf(&sb, "Constraints:\n%s\n\n", strings.Join(in.Constraints, "; "))
	}
	fmt.Fprintf(&sb, "Context:\n%s\n", in.Context)
	return sb.String()
}

func buildEvaluatePrompt(query string, plan []string, report string) string {
	var sb strings.Builder
	sb.WriteString(`You audit research reports.
Return strict JSON object with keys:
needs_refinement (boolean), class (one of: data_coverage, extraction,
relevance, other, or empty string when no refinement is needed),
reason (short string naming the concrete gap).
Judge only whether the report answers the question with the evidence it
cites. No markdown, no extra keys.

`)
	fmt.Fprintf(&sb, "Question:\n%s\n\n", query)
	if len(plan) > 0 {
		fmt.Fprintf(&sb, "Plan:\n%s\n\n", strings.Join(plan, "\n"))
	}
	fmt.Fprintf(&sb, "Report:\n%s\n", report)
	return sb.String()
}
