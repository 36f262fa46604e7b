package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.APIPort != "8080" {
		t.Errorf("APIPort = %q, want 8080", cfg.APIPort)
	}
	if cfg.TriageTopK != 4 {
		t.Errorf("TriageTopK = %d, want 4", cfg.TriageTopK)
	}
	if !cfg.SpeciesGatingEnabled || !cfg.SchemaValidationEnabled || !cfg.EmbeddingsEnabled {
		t.Error("pipeline switches must default to enabled")
	}
	if cfg.InvalidOutputPolicy != "soft" {
		t.Errorf("InvalidOutputPolicy = %q, want soft", cfg.InvalidOutputPolicy)
	}
	if want := []string{"gpt-4o-mini", "gpt-4o"}; !reflect.DeepEqual(cfg.ModelCandidates, want) {
		t.Errorf("ModelCandidates = %v, want %v", cfg.ModelCandidates, want)
	}
	if cfg.RetryMaxAttempts != 4 || cfg.RetryInitialBackoffMs != 500 || cfg.RetryJitterMs != 200 {
		t.Errorf("retry defaults = %d/%d/%d", cfg.RetryMaxAttempts, cfg.RetryInitialBackoffMs, cfg.RetryJitterMs)
	}
	if cfg.BreakerEnabled {
		t.Error("breaker must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("LLM_MODEL_CANDIDATES", " gpt-4o , gpt-4.1-mini ,")
	t.Setenv("EMBEDDINGS_ENABLED", "false")
	t.Setenv("TRIAGE_TOP_K", "6")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.APIPort != "9999" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if want := []string{"gpt-4o", "gpt-4.1-mini"}; !reflect.DeepEqual(cfg.ModelCandidates, want) {
		t.Errorf("ModelCandidates = %v, want %v", cfg.ModelCandidates, want)
	}
	if cfg.EmbeddingsEnabled {
		t.Error("EMBEDDINGS_ENABLED=false ignored")
	}
	if cfg.TriageTopK != 6 {
		t.Errorf("TriageTopK = %d", cfg.TriageTopK)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Errorf("APIRateLimitRPS = %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("TRIAGE_TOP_K", "many")
	t.Setenv("SPECIES_GATING_ENABLED", "perhaps")

	cfg := Load()
	if cfg.TriageTopK != 4 {
		t.Errorf("TriageTopK = %d, want fallback 4", cfg.TriageTopK)
	}
	if !cfg.SpeciesGatingEnabled {
		t.Error("malformed bool must fall back to default")
	}
}
