package usecase

import (
	"context"
	"fmt"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

const refusalReport = "This service answers scientific research questions by searching " +
	"academic literature and materials databases. The submitted query falls outside " +
	"that scope, so no research was run. Please rephrase it as a research topic."

// writeReport drafts the report from the assembled context. An out-of-scope
// session gets the fixed refusal text and skips evaluation entirely. A
// writer failure leaves a stub report that the evaluator's length check
// will send back for another attempt, bounded by the refinement budget.
func (r *Research) writeReport(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	if rec.Intent == domain.IntentOutOfScope {
		rec.Report = refusalReport
		rec.ReportReady = true
		return "query out of scope, research declined", nil
	}

	report, err := r.deps.Writer.WriteReport(ctx, ports.ReportInput{
		Query:       rec.NormalizedQuery,
		Plan:        rec.Plan,
		Context:     rec.AssembledContext,
		Constraints: rec.Constraints,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		report = "The report could not be generated from the assembled context."
	}
	rec.Report = report
	return fmt.Sprintf("drafted report (%d chars)", len(report)), nil
}

// evaluate judges the drafted report. Acceptance, an evaluator failure
// and an exhausted refinement budget all finalize the report; only a
// verdict with budget left arms a refinement cycle.
func (r *Research) evaluate(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	ev, err := r.deps.Evaluator.Evaluate(ctx, rec.NormalizedQuery, rec.Plan, rec.Report)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		rec.ReportReady = true
		return "evaluation unavailable, report accepted as-is", nil
	}
	if !ev.NeedsRefinement {
		rec.ReportReady = true
		return "report accepted", nil
	}

	rec.NeedsRefinement = true
	rec.RefinementClass = ev.Class
	rec.RefinementWhy = ev.Reason
	return fmt.Sprintf("report needs refinement (%s): %s", ev.Class, ev.Reason), nil
}
