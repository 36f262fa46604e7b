package openai

import (
	"context"
	"errors"
	"net/http"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
	"github.com/myvet-app/triage-assistant/internal/infrastructure/resilience"
)

// classifyProviderError drives the retry policy: only throttling is retried,
// everything else propagates immediately.
func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if isRateLimited(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// isRateLimited matches HTTP 429 and the quota-exhausted error code the
// backend reports when a paid quota runs out.
func isRateLimited(err error) bool {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return true
		}
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// toDomainError maps a terminal provider failure onto the domain taxonomy.
func toDomainError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case domain.IsKind(err, domain.ErrRateLimited) || domain.IsKind(err, domain.ErrNotConfigured) || domain.IsKind(err, domain.ErrProvider):
		return err
	case isRateLimited(err) || resilience.IsCircuitOpen(err):
		return domain.WrapError(domain.ErrRateLimited, operation, err)
	default:
		return domain.WrapError(domain.ErrProvider, operation, err)
	}
}
