package usecase

import (
	"encoding/json"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// triageFields are the only properties a sanitized TriageResult keeps.
// Anything else the model emits is stripped, not rejected.
var triageFields = []string{
	"animal",
	"urgencia",
	"causas_frecuentes",
	"pasos_recomendados",
	"alerta",
	"responsabilidad",
}

// SchemaValidator enforces the TriageResult JSON contract. It is strict
// about completeness: raw model text never reaches the owner as structured
// fact unless every required field is present and well typed.
type SchemaValidator struct {
	schema *openapi3.Schema
}

func NewSchemaValidator() *SchemaValidator {
	levels := make([]any, 0, len(domain.UrgencyLevels))
	for _, level := range domain.UrgencyLevels {
		levels = append(levels, level)
	}
	urgency := openapi3.NewStringSchema().WithEnum(levels...)
	stringList := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())

	schema := openapi3.NewObjectSchema().WithProperties(map[string]*openapi3.Schema{
		"animal":             openapi3.NewStringSchema(),
		"urgencia":           urgency,
		"causas_frecuentes":  stringList,
		"pasos_recomendados": stringList,
		"alerta":             openapi3.NewStringSchema(),
		"responsabilidad":    openapi3.NewStringSchema(),
	})
	schema.Required = append([]string(nil), triageFields...)

	return &SchemaValidator{schema: schema}
}

// ValidationResult carries the outcome of validating one candidate object.
type ValidationResult struct {
	Valid     bool
	Sanitized *domain.TriageResult
	Errors    []string
}

// Validate strips unknown properties from the candidate, checks the
// remainder against the contract and, when valid, returns the typed result.
func (v *SchemaValidator) Validate(candidate map[string]any) ValidationResult {
	if candidate == nil {
		return ValidationResult{Errors: []string{"no structured output"}}
	}

	sanitized := make(map[string]any, len(triageFields))
	for _, field := range triageFields {
		if value, ok := candidate[field]; ok {
			sanitized[field] = value
		}
	}

	if err := v.schema.VisitJSON(sanitized, openapi3.MultiErrors()); err != nil {
		return ValidationResult{Errors: flattenSchemaErrors(err)}
	}

	raw, err := json.Marshal(sanitized)
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}
	var result domain.TriageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ValidationResult{Errors: []string{err.Error()}}
	}
	return ValidationResult{Valid: true, Sanitized: &result}
}

func flattenSchemaErrors(err error) []string {
	if multi, ok := err.(openapi3.MultiError); ok {
		out := make([]string, 0, len(multi))
		for _, e := range multi {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
