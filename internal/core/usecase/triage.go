package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/core/ports"
)

// Invalid-output policies. Soft responds with a degraded success flagged for
// manual review; hard turns the same condition into a pipeline error. Both
// persist the consult record first.
const (
	InvalidPolicySoft = "soft"
	InvalidPolicyHard = "hard"
)

// TriageOptions are the explicit behaviour switches of the pipeline. One
// pipeline with flags instead of forked variants keeps the differences
// auditable.
type TriageOptions struct {
	TopK                    int
	SpeciesGatingEnabled    bool
	SchemaValidationEnabled bool
	EmbeddingsEnabled       bool
	InvalidOutputPolicy     string
}

func (o TriageOptions) normalize() TriageOptions {
	if o.TopK <= 0 {
		o.TopK = 4
	}
	if o.InvalidOutputPolicy != InvalidPolicyHard {
		o.InvalidOutputPolicy = InvalidPolicySoft
	}
	return o
}

// ConsultOrchestrator drives one symptom query end to end: input validation,
// retrieval, generation, output validation, and the consult audit record.
// Every accepted submission persists exactly one record before responding.
type ConsultOrchestrator struct {
	index     *IndexService
	embedder  ports.Embedder
	generator ports.Generator
	store     ports.ConsultStore
	events    ports.ConsultEvents
	validator *SchemaValidator
	fallback  *FallbackEngine
	opts      TriageOptions
}

func NewConsultOrchestrator(
	index *IndexService,
	embedder ports.Embedder,
	generator ports.Generator,
	store ports.ConsultStore,
	events ports.ConsultEvents,
	validator *SchemaValidator,
	fallback *FallbackEngine,
	opts TriageOptions,
) *ConsultOrchestrator {
	return &ConsultOrchestrator{
		index:     index,
		embedder:  embedder,
		generator: generator,
		store:     store,
		events:    events,
		validator: validator,
		fallback:  fallback,
		opts:      opts.normalize(),
	}
}

func (o *ConsultOrchestrator) Submit(ctx context.Context, query domain.TriageQuery) (*domain.SubmitResult, error) {
	query.Symptoms = strings.TrimSpace(query.Symptoms)
	if query.Symptoms == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate input", errors.New("sintomas requerido"))
	}

	species := NormalizeSpecies(query.Species)
	if species == "" {
		species = InferSpecies(query.Symptoms)
	}
	if o.opts.SpeciesGatingEnabled && species == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate input", errors.New("especie no reconocida: indica perro, gato, conejo, ave, hamster, huron o tortuga"))
	}

	if err := o.index.EnsureLoaded(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}
	docs := o.index.Documents()

	var evidence []domain.EvidenceItem
	retrieval := domain.RetrievalLexical
	if o.opts.EmbeddingsEnabled {
		queryVector, err := o.embedder.Embed(ctx, query.Symptoms)
		if err != nil {
			if domain.Degradable(err) {
				return o.respondFallback(ctx, query, species, docs, fallbackNote("embed", err))
			}
			return nil, fmt.Errorf("embed query: %w", err)
		}
		evidence = TopKByVector(docs, queryVector, o.opts.TopK, species)
		retrieval = domain.RetrievalVector
	} else {
		evidence = TopKLexical(docs, query.Symptoms, o.opts.TopK, species)
	}

	prompt := BuildTriagePrompt(query, species, evidence)
	raw, model, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		if domain.Degradable(err) {
			return o.respondFallback(ctx, query, species, docs, fallbackNote("generate", err))
		}
		return nil, fmt.Errorf("generate triage: %w", err)
	}

	sources := make([]string, 0, len(evidence))
	for _, item := range evidence {
		sources = append(sources, item.ID)
	}

	parsed, invalidReasons := o.parseAndValidate(raw)
	if parsed == nil {
		return o.respondInvalid(ctx, query, species, sources, raw, retrieval, invalidReasons)
	}

	record := o.newRecord(query, species, sources, raw)
	record.ParsedResponse = parsed
	if err := o.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist consult: %w", err)
	}
	o.publishCreated(ctx, record.ID, domain.OutcomeOK)

	return &domain.SubmitResult{
		Outcome:   domain.OutcomeOK,
		ConsultID: record.ID,
		Model:     model,
		Retrieval: retrieval,
		Result:    parsed,
		Sources:   sources,
	}, nil
}

// parseAndValidate turns raw model output into a sanitized TriageResult, or
// nil plus the reasons it was refused.
func (o *ConsultOrchestrator) parseAndValidate(raw string) (*domain.TriageResult, []string) {
	jsonText := ExtractJSONObject(StripCodeFences(raw))
	if jsonText == "" {
		return nil, []string{"no structured output"}
	}

	var candidate map[string]any
	if err := json.Unmarshal([]byte(jsonText), &candidate); err != nil {
		return nil, []string{fmt.Sprintf("parse json: %v", err)}
	}

	if !o.opts.SchemaValidationEnabled {
		var result domain.TriageResult
		if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
			return nil, []string{fmt.Sprintf("decode triage: %v", err)}
		}
		return &result, nil
	}

	validation := o.validator.Validate(candidate)
	if !validation.Valid {
		return nil, validation.Errors
	}
	return validation.Sanitized, nil
}

func (o *ConsultOrchestrator) respondInvalid(ctx context.Context, query domain.TriageQuery, species string, sources []string, raw, retrieval string, reasons []string) (*domain.SubmitResult, error) {
	record := o.newRecord(query, species, sources, raw)
	record.Note = domain.NoteInvalidModelOutput
	if err := o.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist consult: %w", err)
	}
	o.publishCreated(ctx, record.ID, domain.OutcomeDegradedInvalid)
	slog.Warn("triage_invalid_model_output", "consult_id", record.ID, "reasons", reasons)

	if o.opts.InvalidOutputPolicy == InvalidPolicyHard {
		return nil, domain.WrapError(domain.ErrUnprocessableOutput, "validate model output", fmt.Errorf("%s", strings.Join(reasons, "; ")))
	}
	return &domain.SubmitResult{
		Outcome:   domain.OutcomeDegradedInvalid,
		ConsultID: record.ID,
		Retrieval: retrieval,
		Sources:   sources,
		Message:   "La respuesta generada no superó la validación y quedó pendiente de revisión profesional.",
		Note:      domain.NoteInvalidModelOutput,
	}, nil
}

func (o *ConsultOrchestrator) respondFallback(ctx context.Context, query domain.TriageQuery, species string, docs []domain.Document, note string) (*domain.SubmitResult, error) {
	result := o.fallback.Generate(query.Symptoms)
	sources, _ := o.fallback.Evidence(docs, query.Symptoms)

	record := o.newRecord(query, species, sources, domain.NoteFallback)
	record.Note = note
	if err := o.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist consult: %w", err)
	}
	o.publishCreated(ctx, record.ID, domain.OutcomeDegradedFallback)
	slog.Info("triage_fallback", "consult_id", record.ID, "note", note, "confidence", result.Confidence)

	return &domain.SubmitResult{
		Outcome:   domain.OutcomeDegradedFallback,
		ConsultID: record.ID,
		Retrieval: domain.RetrievalFallback,
		Fallback:  &result,
		Sources:   sources,
		Message:   "Prediagnóstico orientativo local, no autoritativo. Un profesional revisará la consulta.",
		Note:      note,
	}, nil
}

func (o *ConsultOrchestrator) newRecord(query domain.TriageQuery, species string, sources []string, raw string) *domain.ConsultRecord {
	now := time.Now().UTC()
	return &domain.ConsultRecord{
		ID:          uuid.NewString(),
		UserID:      query.UserID,
		Symptoms:    query.Symptoms,
		Species:     species,
		Age:         query.Age,
		Context:     query.Context,
		Sources:     sources,
		RawResponse: raw,
		Status:      domain.ConsultPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (o *ConsultOrchestrator) publishCreated(ctx context.Context, consultID string, outcome domain.SubmitOutcome) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishConsultCreated(ctx, consultID, outcome); err != nil {
		slog.Warn("consult_event_publish_failed", "consult_id", consultID, "error", err)
	}
}

func fallbackNote(stage string, err error) string {
	reason := "rate_limited"
	if domain.IsKind(err, domain.ErrNotConfigured) {
		reason = "not_configured"
	}
	return fmt.Sprintf("%s:%s_%s", domain.NoteFallback, stage, reason)
}
