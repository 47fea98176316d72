package webhook

import (
	"errors"
	"fmt"
)

// ErrValidation matches every error produced by rejecting an inbound webhook.
// Callers map it to a 4xx response.
var ErrValidation = errors.New("webhook validation failed")

var (
	ErrMissingHeaders     = newValidationError("missing X-Timestamp or X-Signature header")
	ErrInvalidTimestamp   = newValidationError("invalid timestamp")
	ErrStaleTimestamp     = newValidationError("timestamp outside tolerance")
	ErrInvalidSignature   = newValidationError("invalid signature")
	ErrMalformedPayload   = newValidationError("malformed payload")
	ErrDuplicateEvent     = newValidationError("event already processed")
	ErrUnsafeModeOverride = newValidationError("mode override is less safe than the configured mode")
)

type validationError struct {
	msg string
}

func newValidationError(msg string) *validationError {
	return &validationError{msg: msg}
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}

// reject wraps a validation sentinel with request-specific detail.
func reject(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
