package fetchers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const openalexDefaultBaseURL = "https://api.openalex.org/works"

// OpenAlex queries the OpenAlex works endpoint as a title search. The mailto
// parameter routes requests into the polite pool.
type OpenAlex struct {
	baseURL    string
	mailto     string
	maxResults int
	httpClient *http.Client
}

func NewOpenAlex(baseURL, mailto string, maxResults int) *OpenAlex {
	if baseURL == "" {
		baseURL = openalexDefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &OpenAlex{baseURL: baseURL, mailto: mailto, maxResults: maxResults, httpClient: newHTTPClient()}
}

func (o *OpenAlex) ID() domain.SourceID { return domain.SourceOpenAlex }

func (o *OpenAlex) Fetch(ctx context.Context, queries domain.TieredQueries, _ string) ([]domain.RawDocument, error) {
	return walkTiers(ctx, o.ID(), queries, o.search)
}

func (o *OpenAlex) search(ctx context.Context, query string) ([]domain.RawDocument, error) {
	u := fmt.Sprintf("%s?filter=title.search:%s&per-page=%d", o.baseURL, url.QueryEscape(query), o.maxResults)
	if o.mailto != "" {
		u += "&mailto=" + url.QueryEscape(o.mailto)
	}

	var response struct {
		Results []struct {
			ID                    string           `json:"id"`
			Title                 string           `json:"title"`
			AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
		} `json:"results"`
	}
	if err := getJSON(ctx, o.httpClient, u, nil, &response); err != nil {
		return nil, fmt.Errorf("openalex query: %w", err)
	}

	docs := make([]domain.RawDocument, 0, len(response.Results))
	for _, r := range response.Results {
		abstract := reconstructAbstract(r.AbstractInvertedIndex)
		if abstract == "" {
			abstract = "Abstract unavailable."
		}
		docs = append(docs, domain.RawDocument{
			Text:   fmt.Sprintf("Title: %s. Abstract: %s", r.Title, abstract),
			Kind:   domain.KindFreeText,
			Source: domain.SourceOpenAlex,
			Metadata: map[string]string{
				"openalex_id": r.ID,
				"title":       r.Title,
			},
		})
	}
	return docs, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted index,
// which maps each word to the positions it occupies.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range index {
		for _, pos := range positions {
			if pos >= 0 {
				words = append(words, positioned{pos: pos, word: word})
			}
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, w.word)
	}
	return strings.Join(parts, " ")
}
