package models

import (
	"time"

	"github.com/google/uuid"
)

// SendRequest is one logical send: a single body fanned out to one or many
// recipients.
type SendRequest struct {
	ID         string      `json:"id"`
	Recipients []string    `json:"recipients"`
	Body       string      `json:"body"`
	Options    SendOptions `json:"options"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewSendRequest builds a request with a fresh UUIDv4 identifier.
func NewSendRequest(recipients []string, body string, opts SendOptions) SendRequest {
	return SendRequest{
		ID:         uuid.NewString(),
		Recipients: append([]string(nil), recipients...),
		Body:       body,
		Options:    opts,
		CreatedAt:  time.Now().UTC(),
	}
}
