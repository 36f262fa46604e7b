package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

type generatorFake struct {
	text    string
	model   string
	err     error
	calls   int
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", "", f.err
	}
	return f.text, f.model, nil
}

type consultStoreFake struct {
	records   []*domain.ConsultRecord
	createErr error
}

func (f *consultStoreFake) Create(_ context.Context, record *domain.ConsultRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyRecord := *record
	f.records = append(f.records, &copyRecord)
	return nil
}

func (f *consultStoreFake) GetByID(_ context.Context, id string) (*domain.ConsultRecord, error) {
	for _, record := range f.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, domain.WrapError(domain.ErrConsultNotFound, "get consult", errors.New("missing"))
}

func (f *consultStoreFake) List(context.Context, int) ([]domain.ConsultRecord, error) {
	out := make([]domain.ConsultRecord, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, nil
}

func (f *consultStoreFake) Review(context.Context, string, string, string, domain.ConsultStatus) error {
	return nil
}

type publishedEvent struct {
	consultID string
	outcome   domain.SubmitOutcome
}

type eventsFake struct {
	published []publishedEvent
	err       error
}

func (f *eventsFake) PublishConsultCreated(_ context.Context, consultID string, outcome domain.SubmitOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedEvent{consultID: consultID, outcome: outcome})
	return nil
}

func (f *eventsFake) SubscribeConsultCreated(context.Context, func(context.Context, string, domain.SubmitOutcome) error) error {
	return nil
}

func vetCorpusDocs() []domain.Document {
	return []domain.Document{
		{ID: "convulsiones.md", Text: "Las convulsiones en perros pueden deberse a epilepsia o intoxicación.", Species: "perro", Embedding: []float32{1, 0}},
		{ID: "digestivo.md", Text: "El vómito agudo en perros suele remitir con ayuno.", Species: "perro", Embedding: []float32{0.5, 0.5}},
		{ID: "aves.md", Text: "El plumaje erizado en aves indica malestar.", Species: "ave", Embedding: []float32{0, 1}},
	}
}

type triageHarness struct {
	orchestrator *ConsultOrchestrator
	embedder     *embedderFake
	generator    *generatorFake
	store        *consultStoreFake
	events       *eventsFake
}

func newTriageHarness(t *testing.T, embedder *embedderFake, generator *generatorFake, opts TriageOptions) *triageHarness {
	t.Helper()
	store := &consultStoreFake{}
	events := &eventsFake{}
	// A pre-persisted index keeps EnsureLoaded from touching the embedder.
	indexStore := &indexStoreFake{saved: vetCorpusDocs()}
	index := NewIndexService(&corpusFake{}, indexStore, embedder, opts.EmbeddingsEnabled)

	orchestrator := NewConsultOrchestrator(
		index,
		embedder,
		generator,
		store,
		events,
		NewSchemaValidator(),
		NewFallbackEngine(),
		opts,
	)
	return &triageHarness{
		orchestrator: orchestrator,
		embedder:     embedder,
		generator:    generator,
		store:        store,
		events:       events,
	}
}

func defaultOpts() TriageOptions {
	return TriageOptions{
		TopK:                    4,
		SpeciesGatingEnabled:    true,
		SchemaValidationEnabled: true,
		EmbeddingsEnabled:       true,
		InvalidOutputPolicy:     InvalidPolicySoft,
	}
}

const validModelJSON = "```json\n" + `{
  "animal": "perro",
  "urgencia": "alta",
  "causas_frecuentes": ["intoxicación", "epilepsia"],
  "pasos_recomendados": ["no dar comida", "acudir al veterinario"],
  "alerta": "acude a urgencias si se repite",
  "responsabilidad": "orientativo",
  "diagnostico_definitivo": "no procede"
}` + "\n```"

func TestSubmitEmptySymptomsRejected(t *testing.T) {
	h := newTriageHarness(t, &embedderFake{vector: []float32{1, 0}}, &generatorFake{}, defaultOpts())

	_, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{Symptoms: "   "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if len(h.store.records) != 0 {
		t.Fatal("rejected submission produced a consult record")
	}
}

func TestSubmitUnrecognizedSpeciesGated(t *testing.T) {
	h := newTriageHarness(t, &embedderFake{vector: []float32{1, 0}}, &generatorFake{}, defaultOpts())

	_, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "no come desde ayer",
		Species:  "iguana",
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if len(h.store.records) != 0 {
		t.Fatal("gated submission produced a consult record")
	}
}

func TestSubmitSpeciesInferredFromSymptoms(t *testing.T) {
	h := newTriageHarness(t, &embedderFake{vector: []float32{1, 0}}, &generatorFake{text: validModelJSON, model: "gpt-4o-mini"}, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		UserID:   "user-1",
		Symptoms: "mi perro tiene convulsiones",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeOK {
		t.Fatalf("outcome = %q, want ok", result.Outcome)
	}
	if h.store.records[0].Species != "perro" {
		t.Fatalf("species = %q, want perro", h.store.records[0].Species)
	}
}

// Unconfigured provider: the submission still succeeds through the local
// rule ladder, flags the seizure, and leaves an auditable record.
func TestSubmitUnconfiguredProviderDegradesToFallback(t *testing.T) {
	embedder := &embedderFake{errs: []error{domain.WrapError(domain.ErrNotConfigured, "embed", errors.New("api key missing"))}}
	generator := &generatorFake{}
	h := newTriageHarness(t, embedder, generator, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		UserID:   "user-1",
		Symptoms: "mi perro tiene convulsiones",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeDegradedFallback {
		t.Fatalf("outcome = %q, want degraded_fallback", result.Outcome)
	}
	if generator.calls != 0 {
		t.Fatal("generator invoked after embedding degradation")
	}
	if result.ConsultID == "" {
		t.Fatal("fallback response carries no consult id")
	}
	if result.Fallback == nil || len(result.Fallback.RedFlags) == 0 {
		t.Fatalf("fallback = %+v, want seizure red flag", result.Fallback)
	}
	if result.Retrieval != domain.RetrievalFallback {
		t.Fatalf("retrieval = %q, want fallback", result.Retrieval)
	}

	record := h.store.records[0]
	if record.Note != "fallback:embed_not_configured" {
		t.Fatalf("note = %q", record.Note)
	}
	if record.Status != domain.ConsultPending {
		t.Fatalf("status = %q, want pending", record.Status)
	}
}

func TestSubmitEmbedRateLimitedSkipsGeneration(t *testing.T) {
	embedder := &embedderFake{errs: []error{domain.WrapError(domain.ErrRateLimited, "embed", errors.New("429"))}}
	generator := &generatorFake{text: validModelJSON}
	h := newTriageHarness(t, embedder, generator, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		UserID:   "user-2",
		Symptoms: "mi perro tiene convulsiones y vomita",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeDegradedFallback {
		t.Fatalf("outcome = %q, want degraded_fallback", result.Outcome)
	}
	if generator.calls != 0 {
		t.Fatal("generator invoked despite rate-limited embedding")
	}
	if h.store.records[0].Note != "fallback:embed_rate_limited" {
		t.Fatalf("note = %q", h.store.records[0].Note)
	}
	// Sources must be documents that actually matched, never zero-score noise.
	for _, source := range result.Sources {
		if source == "aves.md" {
			t.Fatal("unrelated document listed as fallback source")
		}
	}
}

func TestSubmitGenerateRateLimitedDegradesToFallback(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{err: domain.WrapError(domain.ErrRateLimited, "generate", errors.New("insufficient_quota"))}
	h := newTriageHarness(t, embedder, generator, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro tiene convulsiones",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeDegradedFallback {
		t.Fatalf("outcome = %q, want degraded_fallback", result.Outcome)
	}
	if h.store.records[0].Note != "fallback:generate_rate_limited" {
		t.Fatalf("note = %q", h.store.records[0].Note)
	}
}

func TestSubmitProviderErrorIsFatal(t *testing.T) {
	embedder := &embedderFake{errs: []error{domain.WrapError(domain.ErrProvider, "embed", errors.New("connection refused"))}}
	h := newTriageHarness(t, embedder, &generatorFake{}, defaultOpts())

	_, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{Symptoms: "mi gato vomita"})
	if !domain.IsKind(err, domain.ErrProvider) {
		t.Fatalf("err = %v, want provider kind", err)
	}
	if len(h.store.records) != 0 {
		t.Fatal("fatal provider failure still produced a record")
	}
}

// Fenced output with an extra field: accepted, the field stripped, urgency
// preserved.
func TestSubmitValidFencedOutputAccepted(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: validModelJSON, model: "gpt-4o-mini"}
	h := newTriageHarness(t, embedder, generator, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		UserID:   "user-3",
		Symptoms: "mi perro tiene convulsiones",
		Species:  "perro",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeOK {
		t.Fatalf("outcome = %q, want ok", result.Outcome)
	}
	if result.Result == nil || result.Result.Urgency != domain.UrgencyHigh {
		t.Fatalf("result = %+v, want urgencia alta", result.Result)
	}
	if result.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", result.Model)
	}
	if result.Retrieval != domain.RetrievalVector {
		t.Fatalf("retrieval = %q, want vector", result.Retrieval)
	}

	record := h.store.records[0]
	if record.ParsedResponse == nil {
		t.Fatal("parsed response not persisted")
	}
	if !strings.Contains(record.RawResponse, "diagnostico_definitivo") {
		t.Fatal("raw response must keep the model output verbatim")
	}
	if len(h.events.published) != 1 || h.events.published[0].outcome != domain.OutcomeOK {
		t.Fatalf("events = %+v", h.events.published)
	}
}

func TestSubmitInvalidOutputSoftPolicy(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: "Lo siento, no puedo responder en JSON."}
	h := newTriageHarness(t, embedder, generator, defaultOpts())

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro tiene convulsiones",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeDegradedInvalid {
		t.Fatalf("outcome = %q, want degraded_invalid", result.Outcome)
	}
	if result.Result != nil {
		t.Fatal("invalid output leaked a structured result")
	}

	record := h.store.records[0]
	if record.Note != domain.NoteInvalidModelOutput {
		t.Fatalf("note = %q, want %q", record.Note, domain.NoteInvalidModelOutput)
	}
	if record.RawResponse != "Lo siento, no puedo responder en JSON." {
		t.Fatalf("raw response = %q", record.RawResponse)
	}
}

func TestSubmitInvalidOutputHardPolicy(t *testing.T) {
	opts := defaultOpts()
	opts.InvalidOutputPolicy = InvalidPolicyHard
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: `{"urgencia":"critica"}`}
	h := newTriageHarness(t, embedder, generator, opts)

	_, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro tiene convulsiones",
	})
	if !domain.IsKind(err, domain.ErrUnprocessableOutput) {
		t.Fatalf("err = %v, want unprocessable output", err)
	}
	// Hard policy still records the consult before failing.
	if len(h.store.records) != 1 {
		t.Fatalf("records = %d, want 1", len(h.store.records))
	}
}

func TestSubmitEmbeddingsDisabledUsesLexicalRetrieval(t *testing.T) {
	opts := defaultOpts()
	opts.EmbeddingsEnabled = false
	embedder := &embedderFake{}
	generator := &generatorFake{text: validModelJSON, model: "gpt-4o"}
	h := newTriageHarness(t, embedder, generator, opts)

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro tiene convulsiones",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if embedder.calls != 0 {
		t.Fatal("embedder invoked with embeddings disabled")
	}
	if generator.calls != 1 {
		t.Fatal("generation must still run on the lexical path")
	}
	if result.Retrieval != domain.RetrievalLexical {
		t.Fatalf("retrieval = %q, want lexical", result.Retrieval)
	}
}

func TestSubmitSchemaValidationDisabledDecodesDirectly(t *testing.T) {
	opts := defaultOpts()
	opts.SchemaValidationEnabled = false
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: `{"animal":"perro","urgencia":"critica"}`}
	h := newTriageHarness(t, embedder, generator, opts)

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro vomita",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeOK {
		t.Fatalf("outcome = %q, want ok without validation", result.Outcome)
	}
}

func TestSubmitPersistFailureIsFatal(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: validModelJSON}
	h := newTriageHarness(t, embedder, generator, defaultOpts())
	h.store.createErr = errors.New("connection reset")

	if _, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro vomita",
	}); err == nil {
		t.Fatal("persist failure swallowed")
	}
}

func TestSubmitPublishFailureDoesNotFailRequest(t *testing.T) {
	embedder := &embedderFake{vector: []float32{1, 0}}
	generator := &generatorFake{text: validModelJSON}
	h := newTriageHarness(t, embedder, generator, defaultOpts())
	h.events.err = errors.New("nats down")

	result, err := h.orchestrator.Submit(context.Background(), domain.TriageQuery{
		Symptoms: "mi perro vomita",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Outcome != domain.OutcomeOK {
		t.Fatalf("outcome = %q, want ok despite publish failure", result.Outcome)
	}
}
