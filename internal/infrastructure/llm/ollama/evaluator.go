package ollama

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

// minReportRunes rejects degenerate generations before spending an
// evaluation call on them.
const minReportRunes = 200

// Evaluator judges whether the report answers the question and, when it
// does not, names the class of gap so the orchestrator knows what to redo.
type Evaluator struct {
	client *Client
}

func NewEvaluator(client *Client) *Evaluator {
	return &Evaluator{client: client}
}

func (e *Evaluator) Evaluate(ctx context.Context, query string, plan []string, report string) (domain.Evaluation, error) {
	if utf8.RuneCountInString(report) < minReportRunes {
		return domain.Evaluation{
			NeedsRefinement: true,
			Class:           domain.RefineOther,
			Reason:          "report too short to answer the question",
		}, nil
	}

	respText, err := e.client.CompleteJSON(ctx, buildEvaluatePrompt(query, plan, report))
	if err != nil {
		return domain.Evaluation{}, err
	}

	var result struct {
		NeedsRefinement bool   `json:"needs_refinement"`
		Class           string `json:"class"`
		Reason          string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		// An unparseable verdict is treated as acceptance: refinement is
		// expensive and must be justified by a concrete gap.
		return domain.Evaluation{}, nil
	}

	if !result.NeedsRefinement {
		return domain.Evaluation{}, nil
	}

	eval := domain.Evaluation{
		NeedsRefinement: true,
		Class:           parseRefinementClass(result.Class),
		Reason:          result.Reason,
	}
	if eval.Class == domain.RefineNone {
		eval.Class = domain.ClassifyRefinementReason(result.Reason)
	}
	return eval, nil
}

func parseRefinementClass(raw string) domain.RefinementClass {
	switch domain.RefinementClass(raw) {
	case domain.RefineDataCoverageGap, domain.RefineExtractionFail, domain.RefineRelevanceGap, domain.RefineOther:
		return domain.RefinementClass(raw)
	default:
		return domain.RefineNone
	}
}
