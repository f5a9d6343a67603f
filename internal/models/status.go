package models

import "time"

// Dispatch event types.
const (
	EventSubmitted = "submitted"
	EventFailed    = "failed"
)

// DispatchEvent is published once per recipient after a send completes.
type DispatchEvent struct {
	RequestID   string    `json:"request_id"`
	Recipient   string    `json:"recipient"`
	EventType   string    `json:"event_type"`
	Handle      string    `json:"handle,omitempty"`
	Attempts    int       `json:"attempts"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Alphabet    string    `json:"alphabet"`
	Segments    int       `json:"segments"`
	Timestamp   time.Time `json:"timestamp"`
}
