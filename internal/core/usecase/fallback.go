package usecase

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

//go:embed redflags.yaml
var defaultRedFlagRules []byte

const (
	fallbackEvidenceLimit  = 3
	fallbackSnippetMaxLen  = 400
	watchAndWaitDirective  = "Mantén a la mascota en reposo, ofrece agua en pequeñas cantidades, evita medicar por tu cuenta y observa durante 24 horas. Si empeora, acude a urgencias."
	urgentCareDirective    = "Se detectaron signos de alerta. Lleva al animal a urgencias veterinarias inmediatamente."
	fallbackDisclaimerText = "Respuesta orientativa generada por reglas locales. No sustituye la consulta veterinaria."
)

type redFlagCategory struct {
	Label    string   `yaml:"label"`
	Patterns []string `yaml:"patterns"`
}

type redFlagRules struct {
	Categories []redFlagCategory `yaml:"categories"`
}

// FallbackEngine is the deterministic, network-free tier of the degradation
// ladder: fixed pattern rules over normalized text plus a lexical evidence
// scorer for supporting snippets.
type FallbackEngine struct {
	categories []redFlagCategory
}

// NewFallbackEngine loads the embedded red-flag rule table.
func NewFallbackEngine() *FallbackEngine {
	engine, err := newFallbackEngine(defaultRedFlagRules)
	if err != nil {
		// The embedded table is validated by tests; reaching this means a
		// broken build, not a runtime condition.
		panic(fmt.Sprintf("embedded red-flag rules: %v", err))
	}
	return engine
}

// NewFallbackEngineFromFile loads an operator-supplied rule table.
func NewFallbackEngineFromFile(path string) (*FallbackEngine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read red-flag rules: %w", err)
	}
	return newFallbackEngine(raw)
}

func newFallbackEngine(raw []byte) (*FallbackEngine, error) {
	var rules redFlagRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse red-flag rules: %w", err)
	}
	if len(rules.Categories) == 0 {
		return nil, fmt.Errorf("red-flag rules: no categories defined")
	}
	return &FallbackEngine{categories: rules.Categories}, nil
}

// Generate produces the rule-based triage for the given symptom text. It is
// pure: identical input always yields the identical result.
func (e *FallbackEngine) Generate(symptoms string) domain.FallbackResult {
	text := strings.ToLower(symptoms)

	redFlags := make([]string, 0, len(e.categories))
	for _, category := range e.categories {
		for _, pattern := range category.Patterns {
			if strings.Contains(text, pattern) {
				redFlags = append(redFlags, category.Label)
				break
			}
		}
	}

	result := domain.FallbackResult{
		Recommendations: watchAndWaitDirective,
		RedFlags:        redFlags,
		Confidence:      domain.ConfidenceLow,
		Disclaimer:      fallbackDisclaimerText,
	}
	if len(redFlags) > 0 {
		result.Recommendations = urgentCareDirective
		result.Confidence = domain.ConfidenceMedium
	}
	return result
}

// Evidence selects up to three supporting snippets for a fallback answer
// using the lexical scorer. Only documents with a positive score count as
// sources.
func (e *FallbackEngine) Evidence(docs []domain.Document, symptoms string) (sources []string, evidence []domain.EvidenceItem) {
	scored := TopKLexical(docs, symptoms, fallbackEvidenceLimit, "")

	sources = make([]string, 0, len(scored))
	evidence = make([]domain.EvidenceItem, 0, len(scored))
	for _, item := range scored {
		if item.Score > 0 {
			sources = append(sources, item.ID)
		}
		snippet := item.Text
		if runes := []rune(snippet); len(runes) > fallbackSnippetMaxLen {
			snippet = string(runes[:fallbackSnippetMaxLen])
		}
		evidence = append(evidence, domain.EvidenceItem{ID: item.ID, Text: snippet, Score: item.Score})
	}
	return sources, evidence
}
