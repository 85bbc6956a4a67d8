package usecase

import (
	"context"
	"fmt"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

// fetchSource runs one source fetcher and appends its documents. A fetcher
// error or an empty result is a soft outcome; the source simply contributes
// nothing this cycle.
func (r *Research) fetchSource(ctx context.Context, rec *domain.SessionRecord, src domain.SourceID) (string, error) {
	fetcher, ok := r.deps.Fetchers[src]
	if !ok {
		return fmt.Sprintf("source %s not configured, skipped", src), nil
	}
	docs, err := fetcher.Fetch(ctx, rec.Queries[src], rec.SearchTerm)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return fmt.Sprintf("source %s failed: %v", src, err), nil
	}
	rec.RawDocuments = append(rec.RawDocuments, docs...)
	return fmt.Sprintf("source %s returned %d documents", src, len(docs)), nil
}

// acquire turns free-text documents into chunks. For each document it
// prefers the full text behind the locator and falls back to the fetched
// abstract when the download or extraction fails. Documents already
// chunked in an earlier cycle are skipped; structured records bypass
// chunking and are carved into the context directly.
func (r *Research) acquire(ctx context.Context, rec *domain.SessionRecord) (string, error) {
	chunked := make(map[string]bool, len(rec.Chunks))
	for _, c := range rec.Chunks {
		chunked[c.DocID] = true
	}

	added := 0
	for i, doc := range rec.RawDocuments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if doc.Kind == domain.KindStructured {
			continue
		}
		docID := fmt.Sprintf("doc-%03d", i)
		if chunked[docID] {
			continue
		}

		text := doc.Text
		if locator := doc.Locator(); locator != "" {
			full, err := r.deps.Acquirer.Acquire(ctx, locator)
			if err == nil && full != "" {
				text = full
			} else if r.deps.Observer != nil {
				r.deps.Observer.AcquireFailed(string(doc.Source))
			}
		}
		if text == "" {
			continue
		}

		for j, piece := range r.deps.Chunker.Chunk(text) {
			rec.Chunks = append(rec.Chunks, domain.Chunk{
				ChunkID:    fmt.Sprintf("%s-c%03d", docID, j),
				DocID:      docID,
				ChunkIndex: j,
				Text:       piece,
				Source:     doc.Source,
				Locator:    doc.Locator(),
			})
			added++
		}
	}

	if len(rec.Chunks) == 0 {
		rec.Chunks = append(rec.Chunks, domain.Chunk{
			ChunkID: "warn-0",
			DocID:   "warn",
			Text:    "No source material could be retrieved for this query.",
		})
	}
	return fmt.Sprintf("acquired %d new chunks (%d total)", added, len(rec.Chunks)), nil
}
