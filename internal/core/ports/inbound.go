package ports

import (
	"context"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// TriageService is the inbound contract for the symptom-triage pipeline.
type TriageService interface {
	Submit(ctx context.Context, query domain.TriageQuery) (*domain.SubmitResult, error)
}

// IndexAdmin rebuilds the reference index on demand.
type IndexAdmin interface {
	Reindex(ctx context.Context) (int, error)
}
