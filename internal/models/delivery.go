package models

import (
	"fmt"
	"strings"
)

// DeliveryHandle is the opaque per-recipient identifier issued by the
// gateway after a successful submission.
type DeliveryHandle string

func (h DeliveryHandle) String() string { return string(h) }

// DeliveryStatus is the normalised delivery state of a handle.
type DeliveryStatus string

// Delivery status vocabulary.
const (
	StatusAccepted  DeliveryStatus = "ACCEPTED"
	StatusScheduled DeliveryStatus = "SCHEDULED"
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusFailed    DeliveryStatus = "FAILED"
)

// ParseDeliveryStatus maps a case-insensitive status name onto the
// vocabulary.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	switch s := DeliveryStatus(strings.ToUpper(strings.TrimSpace(value))); s {
	case StatusAccepted, StatusScheduled, StatusSent, StatusDelivered, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown delivery status %q", value)
	}
}

// Final reports whether the status can no longer change.
func (s DeliveryStatus) Final() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Report is a snapshot of a handle as returned by the gateway.
type Report struct {
	Status DeliveryStatus
	// Cost is expressed in gateway credits.
	Cost float64
}
