package smserr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestTransportIsRetryable(t *testing.T) {
	base := errors.New("gateway returned 503")
	wrapped := Transport(base)

	if !errors.Is(wrapped, ErrTransport) {
		t.Fatalf("expected wrapped error to be a transport error: %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected wrapped error to keep the original in its chain")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("expected transport error to be retryable")
	}
	if !strings.Contains(wrapped.Error(), base.Error()) {
		t.Fatalf("expected wrapped error message to include original message")
	}
}

func TestPermanentKindsAreNotRetryable(t *testing.T) {
	base := errors.New("nope")
	for name, err := range map[string]error{
		"validation": Validation(base),
		"auth":       Auth(base),
		"quota":      Quota(base),
		"encoding":   Encoding(base),
		"not_found":  NotFound(base),
	} {
		if IsRetryable(err) {
			t.Fatalf("%s: expected not retryable", name)
		}
		if got := Kind(err); got != name {
			t.Fatalf("expected kind %q, got %q", name, got)
		}
	}
}

func TestCancelledTransportIsNotRetryable(t *testing.T) {
	err := Cancelled(Transport(context.Canceled))
	if IsRetryable(err) {
		t.Fatalf("expected cancelled error to never be retried")
	}
	if Kind(err) != "cancelled" {
		t.Fatalf("expected cancelled kind, got %q", Kind(err))
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain")
	}
}

func TestWrapNil(t *testing.T) {
	if !errors.Is(Transport(nil), ErrTransport) {
		t.Fatalf("expected nil transport wrap to fall back to ErrTransport")
	}
	if !errors.Is(Auth(nil), ErrAuth) {
		t.Fatalf("expected nil auth wrap to fall back to ErrAuth")
	}
}

func TestWrapDoesNotDoubleAnnotate(t *testing.T) {
	once := Quota(errors.New("insufficient credits"))
	twice := Quota(once)
	if once.Error() != twice.Error() {
		t.Fatalf("expected idempotent wrap, got %q", twice.Error())
	}
}

func TestFieldErrors(t *testing.T) {
	var errs FieldErrors
	if errs.Err() != nil {
		t.Fatalf("expected nil error when no field failed")
	}
	errs.Add("recipients[1]", "not an international number")
	errs.Add("body", "must not be empty")

	err := errs.Err()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected field errors to match ErrValidation")
	}
	var fe FieldErrors
	if !errors.As(err, &fe) || len(fe) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "recipients[1]") || !strings.Contains(err.Error(), "body") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
