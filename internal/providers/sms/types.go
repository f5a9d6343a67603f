package sms

import (
	"context"

	"github.com/example/bulksms/internal/models"
)

// Submission is one message addressed to a single recipient.
type Submission struct {
	RequestID string
	Recipient string
	Message   models.Message
	Options   models.SendOptions
}

// Transport is the gateway collaborator. Submit fails with validation, auth,
// quota or transport errors; Query fails with not-found or transport errors.
type Transport interface {
	Submit(ctx context.Context, sub *Submission) (models.DeliveryHandle, error)
	Query(ctx context.Context, handle models.DeliveryHandle) (models.Report, error)
}
