package domain

// Urgency levels a validated triage may carry.
const (
	UrgencyLow       = "baja"
	UrgencyMedium    = "media"
	UrgencyHigh      = "alta"
	UrgencyEmergency = "emergencia"
	UrgencyUnknown   = "desconocida"
)

// UrgencyLevels lists every accepted value of the urgencia field.
var UrgencyLevels = []string{
	UrgencyLow,
	UrgencyMedium,
	UrgencyHigh,
	UrgencyEmergency,
	UrgencyUnknown,
}

// TriageResult is the schema-validated structured output of a generation.
// Field names follow the owner-facing JSON contract of the original API.
type TriageResult struct {
	Animal           string   `json:"animal"`
	Urgency          string   `json:"urgencia"`
	CommonCauses     []string `json:"causas_frecuentes"`
	RecommendedSteps []string `json:"pasos_recomendados"`
	Alert            string   `json:"alerta"`
	Responsibility   string   `json:"responsabilidad"`
}

// Fallback confidence levels. The rule engine never claims more than media.
const (
	ConfidenceLow    = "baja"
	ConfidenceMedium = "media"
)

// FallbackResult is the deterministic rule-based triage used when the
// generative backend is throttled or unconfigured.
type FallbackResult struct {
	Recommendations string   `json:"recomendaciones"`
	RedFlags        []string `json:"red_flags"`
	Confidence      string   `json:"confidence"`
	Disclaimer      string   `json:"disclaimer"`
}
