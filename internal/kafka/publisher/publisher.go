// Package publisher serialises worker output onto Kafka topics.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
)

// ErrProducerNotInitialised is returned by publishers without a producer.
var ErrProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the publishers.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

var jsonHeaders = map[string][]byte{
	"content-type": []byte("application/json"),
}

// EventPublisher emits one dispatch event per recipient. Events are keyed by
// request ID so every event of a send lands on the same partition.
type EventPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewEventPublisher constructs an EventPublisher. It returns nil when prod is nil.
func NewEventPublisher(prod SyncProducer, topic string, log zerolog.Logger) *EventPublisher {
	if prod == nil {
		return nil
	}
	return &EventPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger.ForComponent(log, "event_publisher"),
	}
}

// PublishEvent writes event to Kafka synchronously.
func (p *EventPublisher) PublishEvent(_ context.Context, event models.DispatchEvent) error {
	if p == nil || p.producer == nil {
		return ErrProducerNotInitialised
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal dispatch event: %w", err)
	}

	if err := p.producer.PublishSync(p.topic, []byte(event.RequestID), jsonHeaders, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish dispatch event: %w", err)
	}
	p.logger.Debug().
		Str("request_id", event.RequestID).
		Str("recipient", event.Recipient).
		Str("event_type", event.EventType).
		Msg("dispatch event published")
	return nil
}

// DLQPublisher writes rejected send requests to the dead letter topic.
type DLQPublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewDLQPublisher constructs a DLQPublisher. It returns nil when prod is nil.
func NewDLQPublisher(prod SyncProducer, topic string, log zerolog.Logger) *DLQPublisher {
	if prod == nil {
		return nil
	}
	return &DLQPublisher{
		producer: prod,
		topic:    topic,
		logger:   logger.ForComponent(log, "dlq_publisher"),
	}
}

// PublishDLQ writes record to Kafka synchronously. An original message that
// is not valid JSON is embedded as a JSON string.
func (p *DLQPublisher) PublishDLQ(_ context.Context, record models.DLQRecord) error {
	if p == nil || p.producer == nil {
		return ErrProducerNotInitialised
	}

	if len(record.OriginalMessage) > 0 && !json.Valid(record.OriginalMessage) {
		quoted, err := json.Marshal(string(record.OriginalMessage))
		if err != nil {
			return fmt.Errorf("kafka publisher: quote original message: %w", err)
		}
		record.OriginalMessage = quoted
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal dlq record: %w", err)
	}

	if err := p.producer.PublishSync(p.topic, []byte(record.RequestID), jsonHeaders, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish dlq record: %w", err)
	}
	p.logger.Info().
		Str("request_id", record.RequestID).
		Str("failure_type", record.FailureType).
		Msg("request moved to dead letter topic")
	return nil
}
