// Package smserr defines the error taxonomy shared by the planner, the
// dispatch orchestrator, the tracking client and the gateway transports.
package smserr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds. Callers classify failures with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrEncoding   = errors.New("encoding error")
	ErrTransport  = errors.New("transport error")
	ErrAuth       = errors.New("authentication error")
	ErrQuota      = errors.New("quota error")
	ErrNotFound   = errors.New("not found")
	ErrCancelled  = errors.New("cancelled")
)

func wrap(kind, err error) error {
	if err == nil {
		return kind
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Validation annotates err as a validation failure.
func Validation(err error) error { return wrap(ErrValidation, err) }

// Encoding annotates err as a segmentation or encoding policy violation.
func Encoding(err error) error { return wrap(ErrEncoding, err) }

// Transport annotates err as a connectivity, timeout, rate limit or 5xx failure.
func Transport(err error) error { return wrap(ErrTransport, err) }

// Auth annotates err as an authentication failure.
func Auth(err error) error { return wrap(ErrAuth, err) }

// Quota annotates err as an insufficient credit or quota failure.
func Quota(err error) error { return wrap(ErrQuota, err) }

// NotFound annotates err as an unknown handle.
func NotFound(err error) error { return wrap(ErrNotFound, err) }

// Cancelled annotates err as a submission skipped because the caller cancelled.
func Cancelled(err error) error { return wrap(ErrCancelled, err) }

// IsRetryable reports whether a submission failing with err may be retried.
// Only transport failures qualify; a cancelled submission never does.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrTransport)
}

// Kind returns the short name of the taxonomy kind carried by err, or
// "unknown" when err was not classified.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrQuota):
		return "quota"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldErrors aggregates every invalid field of a request. It always
// matches ErrValidation.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Is makes FieldErrors match ErrValidation.
func (e FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error.
func (e *FieldErrors) Add(field, reason string) {
	*e = append(*e, FieldError{Field: field, Reason: reason})
}

// Err returns nil when no field failed.
func (e FieldErrors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
