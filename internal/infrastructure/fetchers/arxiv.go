package fetchers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const arxivDefaultBaseURL = "http://export.arxiv.org/api/query"

// Arxiv searches the arXiv Atom API and returns abstracts with a PDF
// locator for later full-text acquisition.
type Arxiv struct {
	baseURL    string
	maxResults int
	httpClient *http.Client
}

func NewArxiv(baseURL string, maxResults int) *Arxiv {
	if baseURL == "" {
		baseURL = arxivDefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Arxiv{baseURL: baseURL, maxResults: maxResults, httpClient: newHTTPClient()}
}

func (a *Arxiv) ID() domain.SourceID { return domain.SourceArxiv }

func (a *Arxiv) Fetch(ctx context.Context, queries domain.TieredQueries, _ string) ([]domain.RawDocument, error) {
	return walkTiers(ctx, a.ID(), queries, a.search)
}

type arxivFeed struct {
	Entries []struct {
		ID      string `xml:"id"`
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
		Links   []struct {
			Href  string `xml:"href,attr"`
			Title string `xml:"title,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

func (a *Arxiv) search(ctx context.Context, query string) ([]domain.RawDocument, error) {
	u := fmt.Sprintf("%s?search_query=%s&max_results=%d&sortBy=relevance&sortOrder=descending",
		a.baseURL, url.QueryEscape("all:"+query), a.maxResults)

	var feed arxivFeed
	if err := getXML(ctx, a.httpClient, u, &feed); err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}

	docs := make([]domain.RawDocument, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := strings.Join(strings.Fields(entry.Title), " ")
		abstract := truncateRunes(strings.Join(strings.Fields(entry.Summary), " "), 500)
		meta := map[string]string{
			"arxiv_id": entry.ID,
			"title":    title,
			"url":      entry.ID,
		}
		for _, link := range entry.Links {
			if link.Title == "pdf" {
				meta["pdf_url"] = link.Href
			}
		}
		docs = append(docs, domain.RawDocument{
			Text:     fmt.Sprintf("Title: %s. Abstract: %s", title, abstract),
			Kind:     domain.KindFreeText,
			Source:   domain.SourceArxiv,
			Metadata: meta,
		})
	}
	return docs, nil
}
