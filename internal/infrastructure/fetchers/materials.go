package fetchers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const materialsDefaultBaseURL = "https://api.materialsproject.org"

// Materials queries the Materials Project summary endpoint by chemical
// formula. Its records are already fact-shaped, so they are marked
// structured and bypass ranking downstream. The fetcher declines to run
// when the search term does not look like a formula.
type Materials struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewMaterials(baseURL, apiKey string, maxResults int) *Materials {
	if baseURL == "" {
		baseURL = materialsDefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Materials{baseURL: baseURL, apiKey: apiKey, maxResults: maxResults, httpClient: newHTTPClient()}
}

func (m *Materials) ID() domain.SourceID { return domain.SourceMaterials }

func (m *Materials) Fetch(ctx context.Context, _ domain.TieredQueries, searchTerm string) ([]domain.RawDocument, error) {
	// Constraint strings like "TOPIC: ..." must never reach the formula API.
	if !usableFormula(searchTerm) {
		return nil, nil
	}
	if m.apiKey == "" {
		return nil, fmt.Errorf("materials api key not configured")
	}

	u := fmt.Sprintf("%s/materials/summary/?formula=%s&_fields=material_id,formula_pretty,is_stable,band_gap,energy_above_hull&_limit=%d",
		m.baseURL, url.QueryEscape(searchTerm), m.maxResults)
	headers := map[string]string{"X-API-KEY": m.apiKey}

	var response struct {
		Data []struct {
			MaterialID      string   `json:"material_id"`
			Formula         string   `json:"formula_pretty"`
			IsStable        bool     `json:"is_stable"`
			BandGap         *float64 `json:"band_gap"`
			EnergyAboveHull *float64 `json:"energy_above_hull"`
		} `json:"data"`
	}
	if err := getJSON(ctx, m.httpClient, u, headers, &response); err != nil {
		return nil, fmt.Errorf("materials query: %w", err)
	}

	docs := make([]domain.RawDocument, 0, len(response.Data))
	for _, r := range response.Data {
		stability := "Stable"
		if !r.IsStable {
			stability = fmt.Sprintf("Unstable (E/hull: %s eV)", floatOrNA(r.EnergyAboveHull))
		}
		bandGap := "Metallic/Unknown"
		if r.BandGap != nil {
			bandGap = fmt.Sprintf("%g eV", *r.BandGap)
		}
		text := fmt.Sprintf("Material: %s (%s). Stability: %s. Band Gap: %s. Energy Above Hull: %s eV.",
			r.Formula, r.MaterialID, stability, bandGap, floatOrNA(r.EnergyAboveHull))
		docs = append(docs, domain.RawDocument{
			Text:   text,
			Kind:   domain.KindStructured,
			Source: domain.SourceMaterials,
			Metadata: map[string]string{
				"material_id": r.MaterialID,
				"formula":     r.Formula,
			},
		})
	}
	return docs, nil
}

func usableFormula(term string) bool {
	term = strings.TrimSpace(term)
	return len(term) >= 2 && !strings.Contains(term, ":")
}

func floatOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%g", *v)
}
