package fetchers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const semanticScholarDefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

// SemanticScholar queries the Graph API paper search. An API key raises the
// rate limit but is not required.
type SemanticScholar struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewSemanticScholar(baseURL, apiKey string, maxResults int) *SemanticScholar {
	if baseURL == "" {
		baseURL = semanticScholarDefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &SemanticScholar{baseURL: baseURL, apiKey: apiKey, maxResults: maxResults, httpClient: newHTTPClient()}
}

func (s *SemanticScholar) ID() domain.SourceID { return domain.SourceSemanticScholar }

func (s *SemanticScholar) Fetch(ctx context.Context, queries domain.TieredQueries, _ string) ([]domain.RawDocument, error) {
	return walkTiers(ctx, s.ID(), queries, s.search)
}

func (s *SemanticScholar) search(ctx context.Context, query string) ([]domain.RawDocument, error) {
	u := fmt.Sprintf("%s/paper/search?query=%s&limit=%d&fields=title,abstract,url,openAccessPdf",
		s.baseURL, url.QueryEscape(query), s.maxResults)

	var headers map[string]string
	if s.apiKey != "" {
		headers = map[string]string{"x-api-key": s.apiKey}
	}

	var response struct {
		Data []struct {
			Title         string `json:"title"`
			Abstract      string `json:"abstract"`
			URL           string `json:"url"`
			OpenAccessPdf struct {
				URL string `json:"url"`
			} `json:"openAccessPdf"`
		} `json:"data"`
	}
	if err := getJSON(ctx, s.httpClient, u, headers, &response); err != nil {
		return nil, fmt.Errorf("semanticscholar query: %w", err)
	}

	docs := make([]domain.RawDocument, 0, len(response.Data))
	for _, r := range response.Data {
		abstract := r.Abstract
		if abstract == "" {
			abstract = "Abstract unavailable."
		}
		meta := map[string]string{
			"title": r.Title,
			"url":   r.URL,
		}
		if r.OpenAccessPdf.URL != "" {
			meta["pdf_url"] = r.OpenAccessPdf.URL
		}
		docs = append(docs, domain.RawDocument{
			Text:     fmt.Sprintf("Title: %s. Abstract: %s", r.Title, truncateRunes(abstract, 500)),
			Kind:     domain.KindFreeText,
			Source:   domain.SourceSemanticScholar,
			Metadata: meta,
		})
	}
	return docs, nil
}
