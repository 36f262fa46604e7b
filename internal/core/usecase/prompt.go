package usecase

import (
	"fmt"
	"strings"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

// BuildTriagePrompt assembles the generation prompt: instructions pinning
// the JSON contract, the query fields, and the retrieved evidence snippets
// labelled by source id.
func BuildTriagePrompt(query domain.TriageQuery, species string, evidence []domain.EvidenceItem) string {
	var b strings.Builder

	b.WriteString(`Eres un asistente veterinario orientativo. Usa SOLO la EVIDENCIA proveída para valorar los síntomas descritos.
Responde con un único objeto JSON con exactamente estas propiedades:
animal (string), urgencia ("baja"|"media"|"alta"|"emergencia"|"desconocida"), causas_frecuentes (array de strings), pasos_recomendados (array de strings), alerta (string, puede ser vacío), responsabilidad (string).
Nunca inventes fuentes; si la evidencia es insuficiente usa urgencia "desconocida" e indica la incertidumbre.
Responde SOLO con el JSON, sin texto adicional antes o después.

`)

	fmt.Fprintf(&b, "Sintomas: %s\n", query.Symptoms)
	fmt.Fprintf(&b, "Especie: %s\n", valueOr(species, "N/D"))
	fmt.Fprintf(&b, "Edad: %s\n", valueOr(query.Age, "N/D"))
	fmt.Fprintf(&b, "Contexto adicional: %s\n\n", valueOr(query.Context, "N/A"))

	b.WriteString("EVIDENCIA:\n")
	for i, item := range evidence {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "SOURCE:%s\n%s\n", item.ID, item.Text)
	}
	return b.String()
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
