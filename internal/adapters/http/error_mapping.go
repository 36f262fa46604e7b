package httpadapter

import (
	"net/http"

	"github.com/myvet-app/triage-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrConsultNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnprocessableOutput):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrRateLimited), domain.IsKind(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
