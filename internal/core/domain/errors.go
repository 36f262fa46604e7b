package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateLimited         = errors.New("provider rate limited")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrProvider            = errors.New("provider failure")
	ErrConsultNotFound     = errors.New("consult not found")
	ErrIndexNotFound       = errors.New("index artifact not found")
	ErrUnprocessableOutput = errors.New("unprocessable model output")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Degradable reports whether a provider error is absorbed by the local
// fallback ladder. Anything else propagates as a fatal pipeline failure so
// operators see infrastructure faults instead of a silent "fallback".
func Degradable(err error) bool {
	return IsKind(err, ErrRateLimited) || IsKind(err, ErrNotConfigured)
}
