package usecase

import (
	"encoding/json"
	"testing"
)

func validCandidate() map[string]any {
	return map[string]any{
		"animal":             "perro",
		"urgencia":           "alta",
		"causas_frecuentes":  []any{"gastroenteritis", "cuerpo extraño"},
		"pasos_recomendados": []any{"retirar comida 12h", "acudir al veterinario"},
		"alerta":             "acude a urgencias si hay sangre",
		"responsabilidad":    "orientativo, no sustituye consulta presencial",
	}
}

func TestSchemaValidateAccepted(t *testing.T) {
	v := NewSchemaValidator()
	res := v.Validate(validCandidate())
	if !res.Valid {
		t.Fatalf("valid candidate rejected: %v", res.Errors)
	}
	if res.Sanitized.Urgency != "alta" {
		t.Fatalf("urgency = %q, want alta", res.Sanitized.Urgency)
	}
	if len(res.Sanitized.CommonCauses) != 2 {
		t.Fatalf("causes = %v", res.Sanitized.CommonCauses)
	}
}

func TestSchemaValidateMissingRequiredField(t *testing.T) {
	v := NewSchemaValidator()
	candidate := validCandidate()
	delete(candidate, "urgencia")

	res := v.Validate(candidate)
	if res.Valid {
		t.Fatal("candidate without urgencia accepted")
	}
	if len(res.Errors) == 0 {
		t.Fatal("no validation errors reported")
	}
}

func TestSchemaValidateUrgencyOutsideEnum(t *testing.T) {
	v := NewSchemaValidator()
	candidate := validCandidate()
	candidate["urgencia"] = "critica"

	if res := v.Validate(candidate); res.Valid {
		t.Fatal("urgencia outside the enum accepted")
	}
}

func TestSchemaValidateWrongType(t *testing.T) {
	v := NewSchemaValidator()
	candidate := validCandidate()
	candidate["causas_frecuentes"] = "una sola causa"

	if res := v.Validate(candidate); res.Valid {
		t.Fatal("string in place of array accepted")
	}
}

func TestSchemaValidateStripsUnknownFields(t *testing.T) {
	v := NewSchemaValidator()
	candidate := validCandidate()
	candidate["diagnostico_definitivo"] = "moquillo"
	candidate["score"] = 0.93

	res := v.Validate(candidate)
	if !res.Valid {
		t.Fatalf("candidate with extras rejected: %v", res.Errors)
	}

	raw, err := json.Marshal(res.Sanitized)
	if err != nil {
		t.Fatalf("marshal sanitized: %v", err)
	}
	var roundTrip map[string]any
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		t.Fatalf("unmarshal sanitized: %v", err)
	}
	if _, ok := roundTrip["diagnostico_definitivo"]; ok {
		t.Fatal("unknown field survived sanitization")
	}
}

func TestSchemaValidateNilCandidate(t *testing.T) {
	v := NewSchemaValidator()
	if res := v.Validate(nil); res.Valid {
		t.Fatal("nil candidate accepted")
	}
}
