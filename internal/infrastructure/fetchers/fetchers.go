// Package fetchers holds the thin adapters over the scholarly search APIs.
// Every fetcher walks its precision tiers from strict to loose and stops at
// the first tier that returns records. Upstream failures are logged and
// swallowed: an empty result never aborts a research session.
package fetchers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

const maxResponseBytes = 4 << 20

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

// walkTiers tries each tier of the source in order and returns the first
// non-empty batch. Per-tier errors are logged and the walk continues.
func walkTiers(ctx context.Context, id domain.SourceID, queries domain.TieredQueries, search func(ctx context.Context, query string) ([]domain.RawDocument, error)) ([]domain.RawDocument, error) {
	for _, tier := range domain.SourceTiers(id) {
		query := queries[tier]
		if query == "" {
			continue
		}
		docs, err := search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("source_tier_failed", "source", id, "tier", tier, "error", err)
			continue
		}
		if len(docs) > 0 {
			slog.Info("source_tier_hit", "source", id, "tier", tier, "documents", len(docs))
			return docs, nil
		}
	}
	return nil, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out)
}

func getXML(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return xml.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
