package ports

import (
	"context"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// Embedder builds vectors for reference documents and query text. Failures
// carry one of the domain provider kinds: ErrRateLimited after retries are
// exhausted, ErrNotConfigured when no credential is present, ErrProvider for
// anything else.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces freeform triage text from a prompt, trying an ordered
// list of model candidates. It returns the raw text and the model identifier
// that produced it. Error taxonomy matches Embedder.
type Generator interface {
	Generate(ctx context.Context, prompt string) (text string, model string, err error)
}

// CorpusSource lists the reference documents of the knowledge base in a
// stable order. A missing corpus directory yields an empty slice, not an
// error.
type CorpusSource interface {
	List(ctx context.Context) ([]domain.Document, error)
}

// IndexStore persists and loads the built document index. Load returns
// domain.ErrIndexNotFound when no artifact exists yet.
type IndexStore interface {
	Save(ctx context.Context, docs []domain.Document) error
	Load(ctx context.Context) ([]domain.Document, error)
}

// ConsultStore is the authoritative audit trail. It is never rebuilt and its
// unavailability is a fatal pipeline failure.
type ConsultStore interface {
	Create(ctx context.Context, record *domain.ConsultRecord) error
	GetByID(ctx context.Context, id string) (*domain.ConsultRecord, error)
	List(ctx context.Context, limit int) ([]domain.ConsultRecord, error)
	Review(ctx context.Context, id, reviewerID, comment string, status domain.ConsultStatus) error
}

// ConsultEvents publishes consult lifecycle notifications for the review
// worker. Publishing is best effort; the pipeline never fails on it.
type ConsultEvents interface {
	PublishConsultCreated(ctx context.Context, consultID string, outcome domain.SubmitOutcome) error
	SubscribeConsultCreated(ctx context.Context, handler func(ctx context.Context, consultID string, outcome domain.SubmitOutcome) error) error
}
