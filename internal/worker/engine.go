// Package worker turns Kafka send requests into dispatches, publishing one
// event per recipient and dead-lettering requests rejected as a whole.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

// Config contains the runtime settings of the engine.
type Config struct {
	// MsgMaxBytes rejects larger records before decoding. Zero disables
	// the check.
	MsgMaxBytes int
}

// Record is a Kafka message delivered to the worker, decoupled from the
// concrete consumer implementation.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commit func(context.Context) error
}

// NewRecord builds a record whose offset is committed through commit.
func NewRecord(value []byte, commit func(context.Context) error) *Record {
	return &Record{Value: value, commit: commit}
}

// Commit acknowledges the record. Records without a commit function are
// acknowledged trivially.
func (r *Record) Commit(ctx context.Context) error {
	if r.commit == nil {
		return nil
	}
	return r.commit(ctx)
}

// Dispatcher sends one logical request to all of its recipients.
type Dispatcher interface {
	SendRequest(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error)
}

// EventPublisher publishes per-recipient dispatch events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.DispatchEvent) error
}

// DLQPublisher writes rejected requests to the dead letter topic.
type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record models.DLQRecord) error
}

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies struct {
	Dispatcher     Dispatcher
	EventPublisher EventPublisher
	DLQPublisher   DLQPublisher
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Engine handles one record at a time: decode, dispatch, publish, commit.
// Concurrency across recipients lives in the dispatcher.
type Engine struct {
	cfg        Config
	dispatcher Dispatcher
	events     EventPublisher
	dlq        DLQPublisher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine constructs a worker engine using the supplied configuration and
// collaborators.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("worker: dispatcher dependency is required")
	}
	if deps.EventPublisher == nil {
		return nil, errors.New("worker: event publisher dependency is required")
	}
	if deps.DLQPublisher == nil {
		return nil, errors.New("worker: DLQ publisher dependency is required")
	}

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Engine{
		cfg:        cfg,
		dispatcher: deps.Dispatcher,
		events:     deps.EventPublisher,
		dlq:        deps.DLQPublisher,
		logger:     logger.ForComponent(deps.Logger, "worker_engine"),
		now:        nowFunc,
	}, nil
}

// HandleRecord processes record and commits it. Requests rejected as a whole
// go to the DLQ and are committed. An error is returned, and the record left
// uncommitted, only when the dispatcher fails in an unexpected way or the
// commit itself fails.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		e.deadLetter(ctx, record, string(record.Key), models.FailureTypeValidation, err)
		return e.commit(ctx, record)
	}

	req, err := decodeRequest(record.Value)
	if err != nil {
		e.deadLetter(ctx, record, string(record.Key), models.FailureTypeDecode, err)
		return e.commit(ctx, record)
	}
	if req.ID == "" {
		req.ID = string(record.Key)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := e.dispatcher.SendRequest(ctx, req)
	switch {
	case errors.Is(err, smserr.ErrValidation):
		e.deadLetter(ctx, record, req.ID, models.FailureTypeValidation, err)
		return e.commit(ctx, record)
	case errors.Is(err, smserr.ErrEncoding):
		e.deadLetter(ctx, record, req.ID, models.FailureTypeEncoding, err)
		return e.commit(ctx, record)
	case err != nil:
		e.logger.Error().
			Str("request_id", req.ID).
			Err(err).
			Msg("worker: dispatch failed; leaving record uncommitted")
		return err
	}

	for _, outcome := range result.Outcomes {
		e.publishEvent(ctx, e.eventFor(result, outcome))
	}

	e.logger.Info().
		Str("request_id", req.ID).
		Int("recipients", len(result.Outcomes)).
		Int("succeeded", result.Succeeded()).
		Msg("worker: request processed")

	return e.commit(ctx, record)
}

func decodeRequest(payload []byte) (models.SendRequest, error) {
	var req models.SendRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return models.SendRequest{}, fmt.Errorf("decode send request: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.SendRequest{}, errors.New("decode send request: unexpected data after request object")
	}
	return req, nil
}

func (e *Engine) eventFor(result *models.DispatchResult, outcome models.RecipientOutcome) models.DispatchEvent {
	event := models.DispatchEvent{
		RequestID: result.RequestID,
		Recipient: outcome.Recipient,
		EventType: models.EventSubmitted,
		Handle:    outcome.Handle.String(),
		Attempts:  outcome.Attempts,
		Alphabet:  result.Message.Alphabet().String(),
		Segments:  result.Message.SegmentCount(),
		Timestamp: e.now().UTC(),
	}
	if outcome.Err != nil {
		event.EventType = models.EventFailed
		event.FailureKind = smserr.Kind(outcome.Err)
		event.Error = outcome.Err.Error()
	}
	return event
}

func (e *Engine) publishEvent(ctx context.Context, event models.DispatchEvent) {
	if err := e.events.PublishEvent(ctx, event); err != nil {
		e.logger.Error().
			Str("request_id", event.RequestID).
			Str("recipient", event.Recipient).
			Str("event_type", event.EventType).
			Err(err).
			Msg("worker: failed to publish dispatch event")
	}
}

func (e *Engine) deadLetter(ctx context.Context, record *Record, requestID, failureType string, cause error) {
	e.logger.Warn().
		Str("request_id", requestID).
		Str("failure_type", failureType).
		Err(cause).
		Msg("worker: request rejected")

	dlq := models.DLQRecord{
		RequestID:       requestID,
		OriginalMessage: append(json.RawMessage(nil), record.Value...),
		FailureType:     failureType,
		LastError:       cause.Error(),
		FailedAt:        e.now().UTC(),
	}
	if err := e.dlq.PublishDLQ(ctx, dlq); err != nil {
		e.logger.Error().
			Str("request_id", requestID).
			Err(err).
			Msg("worker: failed to publish DLQ record")
	}
}

func (e *Engine) commit(ctx context.Context, record *Record) error {
	if err := record.Commit(ctx); err != nil {
		e.logger.Error().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Err(err).
			Msg("worker: failed to commit record offset")
		return err
	}
	return nil
}
