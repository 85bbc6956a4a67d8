package ports

import (
	"context"

	"github.com/ybolotov/deep-research/internal/core/domain"
)

// ResearchService is the inbound contract for running one research session
// end to end.
type ResearchService interface {
	Run(ctx context.Context, sessionID, query string) (*domain.ResearchResult, error)
}

// TranscriptReader is the inbound read model for session replay.
type TranscriptReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]domain.TranscriptEntry, error)
}
