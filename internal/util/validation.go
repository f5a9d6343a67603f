package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUUID is returned when a value is not a UUID v4.
	ErrInvalidUUID = errors.New("invalid uuid v4")
	// ErrInvalidTimestamp indicates the value could not be parsed as RFC3339.
	ErrInvalidTimestamp = errors.New("invalid rfc3339 timestamp")
	// ErrInvalidPhone is returned when a phone number is not E.164 compliant.
	ErrInvalidPhone = errors.New("invalid e164 phone number")
	// ErrInvalidSender indicates a sender ID that is neither numeric nor
	// alphanumeric.
	ErrInvalidSender = errors.New("invalid sender id")
)

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ParseUUIDv4 parses and validates a UUID string, ensuring it is version 4.
func ParseUUIDv4(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.UUID{}, fmt.Errorf("%w: value is empty", ErrInvalidUUID)
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}

	if u.Version() != 4 {
		return uuid.UUID{}, fmt.Errorf("%w: expected version 4", ErrInvalidUUID)
	}

	return u, nil
}

// ParseRFC3339 parses a timestamp string using RFC3339Nano for maximum fidelity.
func ParseRFC3339(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: value is empty", ErrInvalidTimestamp)
	}

	ts, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	return ts, nil
}

// NormalizeE164 validates a phone number using the E.164 format and returns the
// normalized representation.
func NormalizeE164(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}

	if !e164Pattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, trimmed)
	}

	return trimmed, nil
}

// NormalizeRecipient accepts a phone number in international form, either
// with a leading '+' or the '00' international prefix, drops common
// separators and returns the E.164 representation.
//
//	"001 (232) 892-120 0123" -> "+12328921200123"
func NormalizeRecipient(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidPhone)
	}

	var sb strings.Builder
	for i, r := range trimmed {
		switch {
		case r == '+' && i == 0:
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case isSeparator(r):
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidPhone, r, trimmed)
		}
	}

	digits := sb.String()
	if strings.HasPrefix(digits, "00") {
		digits = "+" + digits[2:]
	}
	return NormalizeE164(digits)
}

// NormalizeSender formats a sender ID. Alphanumeric senders are trimmed;
// numeric senders are reduced to digits and returned in '+' form with any
// international '00' prefix dropped. An empty value stays empty.
func NormalizeSender(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}

	hasLetter := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if hasLetter {
		return trimmed, nil
	}

	var sb strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(sb.String(), "0")
	if digits == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSender, trimmed)
	}
	return "+" + digits, nil
}

// EnsureMaxBytes checks that a byte slice does not exceed the specified size.
func EnsureMaxBytes(field string, b []byte, max int) error {
	if max <= 0 {
		return nil
	}
	if len(b) > max {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", field, max)
	}
	return nil
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '-', '.', '(', ')', '/':
		return true
	}
	return false
}
