package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"
)

const (
	maxDownloadBytes = 20 << 20
	fetchTimeout     = 15 * time.Second
)

// Browser-shaped headers: several academic hosts reject obvious bots.
var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Referer":         "https://www.google.com/",
}

type payloadKind int

const (
	kindUnusable payloadKind = iota
	kindPDF
	kindSpreadsheet
	kindMarkup
)

// Acquirer downloads a locator, classifies the payload and extracts plain
// text with a format-specific strategy. Every failure is local to the
// locator: the caller skips it and moves on.
type Acquirer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds an Acquirer pacing requests at one per pause interval, the
// polite-crawl behavior the upstream sources expect.
func New(pause time.Duration) *Acquirer {
	if pause <= 0 {
		pause = 1500 * time.Millisecond
	}
	return &Acquirer{
		httpClient: &http.Client{Timeout: fetchTimeout},
		limiter:    rate.NewLimiter(rate.Every(pause), 1),
	}
}

// Acquire fetches the locator and returns extracted plain text. An error or
// empty result means the locator yielded nothing usable; it is never fatal
// to the session and is never retried here.
func (a *Acquirer) Acquire(ctx context.Context, locator string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", fmt.Errorf("empty locator")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	kind, payload, err := a.fetch(ctx, locator)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case kindPDF:
		text, err = extractPDF(payload)
	case kindSpreadsheet:
		text, err = extractSpreadsheet(payload)
	case kindMarkup:
		text, err = ExtractReadableText(payload)
	default:
		return "", fmt.Errorf("unusable content at %s", locator)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("extraction produced no text for %s", locator)
	}
	return text, nil
}

func (a *Acquirer) fetch(ctx context.Context, locator string) (payloadKind, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return kindUnusable, nil, fmt.Errorf("create fetch request: %w", err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return kindUnusable, nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return kindUnusable, nil, fmt.Errorf("fetch %s status: %s", locator, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return kindUnusable, nil, fmt.Errorf("read %s body: %w", locator, err)
	}

	return classify(resp.Header.Get("Content-Type"), locator, body), body, nil
}

// classify routes on the content-type signal, falling back to URL suffix
// and a leading-bytes sniff for servers that lie about types.
func classify(contentType, locator string, body []byte) payloadKind {
	ct := strings.ToLower(contentType)
	lowered := strings.ToLower(locator)

	switch {
	case strings.Contains(ct, "application/pdf") || strings.HasSuffix(lowered, ".pdf"):
		return kindPDF
	case strings.Contains(ct, "spreadsheetml") || strings.HasSuffix(lowered, ".xlsx"):
		return kindSpreadsheet
	case strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml"):
		return kindMarkup
	}

	head := bytes.ToLower(body[:min(len(body), 64)])
	switch {
	case bytes.HasPrefix(head, []byte("%pdf")):
		return kindPDF
	case bytes.Contains(head, []byte("<!doc")) || bytes.Contains(head, []byte("<html")):
		return kindMarkup
	}
	return kindUnusable
}

func extractPDF(payload []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return sb.String(), nil
}

func extractSpreadsheet(payload []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line != "" {
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}
