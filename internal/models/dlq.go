package models

import (
	"encoding/json"
	"time"
)

// Failure types for DLQ records.
const (
	FailureTypeValidation = "validation"
	FailureTypeEncoding   = "encoding"
	FailureTypeDecode     = "decode"
)

// DLQRecord captures a send request rejected as a whole, before any
// recipient was contacted.
type DLQRecord struct {
	RequestID       string          `json:"request_id,omitempty"`
	OriginalMessage json.RawMessage `json:"original_message"`
	FailureType     string          `json:"failure_type"`
	LastError       string          `json:"last_error"`
	FailedAt        time.Time       `json:"failed_at"`
}
