package fetchers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const pubmedDefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMed searches via the E-utilities pair: esearch resolves PMIDs, efetch
// pulls titles and abstracts. NCBI asks polite clients to identify
// themselves with a contact email.
type PubMed struct {
	baseURL    string
	email      string
	maxResults int
	httpClient *http.Client
}

func NewPubMed(baseURL, email string, maxResults int) *PubMed {
	if baseURL == "" {
		baseURL = pubmedDefaultBaseURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &PubMed{baseURL: baseURL, email: email, maxResults: maxResults, httpClient: newHTTPClient()}
}

func (p *PubMed) ID() domain.SourceID { return domain.SourcePubMed }

func (p *PubMed) Fetch(ctx context.Context, queries domain.TieredQueries, _ string) ([]domain.RawDocument, error) {
	return walkTiers(ctx, p.ID(), queries, p.search)
}

func (p *PubMed) search(ctx context.Context, query string) ([]domain.RawDocument, error) {
	pmids, err := p.esearch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	return p.efetch(ctx, pmids)
}

func (p *PubMed) esearch(ctx context.Context, query string) ([]string, error) {
	u := fmt.Sprintf("%s/esearch.fcgi?db=pubmed&term=%s&retmax=%d&sort=relevance&retmode=json",
		p.baseURL, url.QueryEscape(query), p.maxResults)
	if p.email != "" {
		u += "&email=" + url.QueryEscape(p.email)
	}

	var response struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := getJSON(ctx, p.httpClient, u, nil, &response); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	return response.ESearchResult.IDList, nil
}

type pubmedArticleSet struct {
	Articles []struct {
		Citation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title    string `xml:"ArticleTitle"`
				Abstract struct {
					Sections []string `xml:"AbstractText"`
				} `xml:"Abstract"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

func (p *PubMed) efetch(ctx context.Context, pmids []string) ([]domain.RawDocument, error) {
	u := fmt.Sprintf("%s/efetch.fcgi?db=pubmed&id=%s&rettype=medline&retmode=xml",
		p.baseURL, url.QueryEscape(strings.Join(pmids, ",")))
	if p.email != "" {
		u += "&email=" + url.QueryEscape(p.email)
	}

	var set pubmedArticleSet
	if err := getXML(ctx, p.httpClient, u, &set); err != nil {
		return nil, fmt.Errorf("pubmed efetch: %w", err)
	}

	docs := make([]domain.RawDocument, 0, len(set.Articles))
	for _, a := range set.Articles {
		pmid := strings.TrimSpace(a.Citation.PMID)
		title := strings.TrimSpace(a.Citation.Article.Title)
		abstract := strings.TrimSpace(strings.Join(a.Citation.Article.Abstract.Sections, " "))
		// PubMed landing pages follow one predictable URL shape.
		pageURL := fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid)
		docs = append(docs, domain.RawDocument{
			Text:   fmt.Sprintf("Title: %s. Abstract: %s", title, abstract),
			Kind:   domain.KindFreeText,
			Source: domain.SourcePubMed,
			Metadata: map[string]string{
				"pmid":    pmid,
				"title":   title,
				"pdf_url": pageURL,
			},
		})
	}
	return docs, nil
}
