package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
	"github.com/ybolotov/deep-research/internal/core/ports"
)

// Planner covers the reasoning steps that precede retrieval: query cleanup,
// intent classification, planning and per-source query generation. Model
// output that fails to parse degrades to deterministic fallbacks instead of
// failing the session.
type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) NormalizeQuery(ctx context.Context, raw string) (string, error) {
	out, err := p.client.Complete(ctx, buildNormalizePrompt(raw))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return strings.TrimSpace(raw), nil
	}
	return out, nil
}

func (p *Planner) ClassifyIntent(ctx context.Context, query string) (domain.Intent, []string, error) {
	respText, err := p.client.CompleteJSON(ctx, buildIntentPrompt(query))
	if err != nil {
		return "", nil, err
	}

	var result struct {
		Intent      string   `json:"intent"`
		Constraints []string `json:"constraints"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.IntentGeneralResearch, nil, nil
	}

	intent := domain.Intent(strings.ToLower(strings.TrimSpace(result.Intent)))
	if !validIntent(intent) {
		intent = domain.IntentGeneralResearch
	}
	return intent, result.Constraints, nil
}

func (p *Planner) BuildPlan(ctx context.Context, in ports.PlanInput) (ports.PlanOutput, error) {
	respText, err := p.client.CompleteJSON(ctx, buildPlanPrompt(in))
	if err != nil {
		return ports.PlanOutput{}, err
	}

	var result struct {
		Plan    []string `json:"plan"`
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return fallbackPlan(in), nil
	}

	out := ports.PlanOutput{
		Plan:    trimAll(result.Plan),
		Sources: parseSources(result.Sources),
	}
	if len(out.Plan) == 0 || len(out.Sources) == 0 {
		return fallbackPlan(in), nil
	}
	if in.Intent == domain.IntentLiteratureReview {
		out.Sources = ensureSources(out.Sources, domain.SourcePubMed, domain.SourceArxiv)
	}
	return out, nil
}

func (p *Planner) GenerateQueries(ctx context.Context, in ports.QueryGenInput) (ports.QueryGenOutput, error) {
	respText, err := p.client.CompleteJSON(ctx, buildQueryGenPrompt(in))
	if err != nil {
		return ports.QueryGenOutput{}, err
	}

	var result struct {
		Queries  map[string]map[string]string `json:"queries"`
		KeyTerms []string                     `json:"key_terms"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return fallbackQueries(in), nil
	}

	out := ports.QueryGenOutput{
		Queries:  make(map[domain.SourceID]domain.TieredQueries, len(in.Sources)),
		KeyTerms: trimAll(result.KeyTerms),
	}
	for _, src := range in.Sources {
		allowed := domain.SourceTiers(src)
		tiers := domain.TieredQueries{}
		raw := result.Queries[string(src)]
		for _, tier := range allowed {
			if q := strings.TrimSpace(raw[tier]); q != "" {
				tiers[tier] = q
			}
		}
		// The most precise tier always exists so the fetcher has somewhere
		// to start.
		if tiers[allowed[0]] == "" {
			tiers[allowed[0]] = in.Query
		}
		out.Queries[src] = tiers
	}
	return out, nil
}

func fallbackPlan(in ports.PlanInput) ports.PlanOutput {
	out := ports.PlanOutput{
		Plan: []string{
			"Search the literature for work directly addressing the question.",
			"Synthesize the retrieved evidence into a grounded answer.",
		},
		Sources: []domain.SourceID{domain.SourceArxiv, domain.SourceOpenAlex, domain.SourceSemanticScholar},
	}
	if in.Intent == domain.IntentLiteratureReview {
		out.Sources = ensureSources(out.Sources, domain.SourcePubMed)
	}
	return out
}

func fallbackQueries(in ports.QueryGenInput) ports.QueryGenOutput {
	out := ports.QueryGenOutput{
		Queries: make(map[domain.SourceID]domain.TieredQueries, len(in.Sources)),
	}
	for _, src := range in.Sources {
		out.Queries[src] = domain.TieredQueries{domain.SourceTiers(src)[0]: in.Query}
	}
	return out
}

func parseSources(names []string) []domain.SourceID {
	var out []domain.SourceID
	for _, name := range names {
		id := domain.SourceID(strings.ToLower(strings.TrimSpace(name)))
		switch id {
		case domain.SourceArxiv, domain.SourceOpenAlex, domain.SourcePubMed, domain.SourceSemanticScholar, domain.SourceMaterials:
			out = ensureSources(out, id)
		}
	}
	return out
}

func ensureSources(sources []domain.SourceID, add ...domain.SourceID) []domain.SourceID {
	for _, id := range add {
		present := false
		for _, s := range sources {
			if s == id {
				present = true
				break
			}
		}
		if !present {
			sources = append(sources, id)
		}
	}
	return sources
}

func validIntent(intent domain.Intent) bool {
	for _, it := range domain.ValidIntents {
		if it == intent {
			return true
		}
	}
	return false
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
