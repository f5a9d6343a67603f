package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/models"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
	"github.com/example/bulksms/internal/smserr"
	"github.com/example/bulksms/internal/worker"
	"github.com/example/bulksms/pkg/bulksms"
)

type dispatcherStub struct {
	mu       sync.Mutex
	requests []models.SendRequest
	result   *models.DispatchResult
	err      error
}

func (d *dispatcherStub) SendRequest(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.result, d.err
}

type eventCollector struct {
	mu     sync.Mutex
	events []models.DispatchEvent
	err    error
}

func (c *eventCollector) PublishEvent(ctx context.Context, event models.DispatchEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

type dlqCollector struct {
	mu      sync.Mutex
	records []models.DLQRecord
}

func (d *dlqCollector) PublishDLQ(ctx context.Context, record models.DLQRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, record)
	return nil
}

type commitCounter struct {
	count int
	err   error
}

func (c *commitCounter) commit(context.Context) error {
	c.count++
	return c.err
}

type harness struct {
	engine     *worker.Engine
	dispatcher *dispatcherStub
	events     *eventCollector
	dlq        *dlqCollector
}

func newHarness(t *testing.T, cfg worker.Config, dispatcher worker.Dispatcher) *harness {
	t.Helper()
	stub, _ := dispatcher.(*dispatcherStub)
	h := &harness{dispatcher: stub, events: &eventCollector{}, dlq: &dlqCollector{}}
	engine, err := worker.NewEngine(cfg, worker.Dependencies{
		Dispatcher:     dispatcher,
		EventPublisher: h.events,
		DLQPublisher:   h.dlq,
		Logger:         zerolog.Nop(),
		Now:            func() time.Time { return time.Unix(0, 0) },
	})
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	h.engine = engine
	return h
}

func mockClient(t *testing.T, opts ...smsprovider.Option) (*bulksms.Client, *smsprovider.MockProvider) {
	t.Helper()
	opts = append([]smsprovider.Option{smsprovider.WithLatency(0)}, opts...)
	mock := smsprovider.NewMockProvider(zerolog.Nop(), opts...)
	cfg := &config.Config{
		Dispatch: config.DispatchConfig{MaxAttempts: 2, Concurrency: 2},
		Encoding: config.EncodingConfig{GSMSingle: 160, GSMConcat: 153, UCS2Single: 70, UCS2Concat: 67},
	}
	client, err := bulksms.New(cfg, bulksms.WithTransport(mock))
	if err != nil {
		t.Fatalf("bulksms.New returned error: %v", err)
	}
	return client, mock
}

func TestHandleRecordPublishesEventPerRecipient(t *testing.T) {
	client, _ := mockClient(t, smsprovider.WithRecipientScenarios("+447700900002", smsprovider.ScenarioPermanent))
	h := newHarness(t, worker.Config{}, client)

	commits := &commitCounter{}
	payload := `{"id":"req-1","recipients":["+447700900001","+447700900002"],"body":"hello","options":{"priority":true}}`
	if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(payload), commits.commit)); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}

	if commits.count != 1 {
		t.Fatalf("expected one commit, got %d", commits.count)
	}
	if len(h.dlq.records) != 0 {
		t.Fatalf("expected no DLQ records, got %+v", h.dlq.records)
	}
	if len(h.events.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(h.events.events))
	}

	ok, failed := h.events.events[0], h.events.events[1]
	if ok.EventType != models.EventSubmitted || ok.Handle == "" || ok.RequestID != "req-1" || ok.Alphabet != "gsm7" || ok.Segments != 1 {
		t.Fatalf("unexpected submitted event %+v", ok)
	}
	if failed.EventType != models.EventFailed || failed.FailureKind != "validation" || failed.Attempts != 1 {
		t.Fatalf("unexpected failed event %+v", failed)
	}
}

func TestHandleRecordDeadLettersUndecodablePayloads(t *testing.T) {
	cases := map[string]string{
		"not json":      `not json`,
		"unknown field": `{"recipients":["+447700900001"],"body":"hi","colour":"red"}`,
		"trailing data": `{"recipients":["+447700900001"],"body":"hi"} {}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			dispatcher := &dispatcherStub{}
			h := newHarness(t, worker.Config{}, dispatcher)
			commits := &commitCounter{}

			if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(payload), commits.commit)); err != nil {
				t.Fatalf("HandleRecord returned error: %v", err)
			}
			if len(dispatcher.requests) != 0 {
				t.Fatalf("expected no dispatch")
			}
			if len(h.dlq.records) != 1 || h.dlq.records[0].FailureType != models.FailureTypeDecode {
				t.Fatalf("expected decode DLQ record, got %+v", h.dlq.records)
			}
			if commits.count != 1 {
				t.Fatalf("expected commit after dead-lettering, got %d", commits.count)
			}
		})
	}
}

func TestHandleRecordDeadLettersRejectedRequests(t *testing.T) {
	client, mock := mockClient(t)
	h := newHarness(t, worker.Config{}, client)
	commits := &commitCounter{}

	payload := `{"id":"req-2","recipients":[],"body":"hi"}`
	if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(payload), commits.commit)); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}

	if len(mock.Submissions()) != 0 {
		t.Fatalf("expected zero transport calls")
	}
	if len(h.dlq.records) != 1 {
		t.Fatalf("expected one DLQ record, got %d", len(h.dlq.records))
	}
	record := h.dlq.records[0]
	if record.FailureType != models.FailureTypeValidation || record.RequestID != "req-2" {
		t.Fatalf("unexpected DLQ record %+v", record)
	}
	if !strings.Contains(record.LastError, "recipients") {
		t.Fatalf("expected recipients field in error, got %q", record.LastError)
	}
	if !json.Valid(record.OriginalMessage) {
		t.Fatalf("expected original message to be kept")
	}
	if len(h.events.events) != 0 || commits.count != 1 {
		t.Fatalf("expected no events and one commit, got events=%d commits=%d", len(h.events.events), commits.count)
	}
}

func TestHandleRecordDeadLettersEncodingFailures(t *testing.T) {
	dispatcher := &dispatcherStub{err: smserr.Encoding(errors.New("too many segments"))}
	h := newHarness(t, worker.Config{}, dispatcher)

	rec := worker.NewRecord([]byte(`{"recipients":["+447700900001"],"body":"hi"}`), nil)
	rec.Key = []byte("key-1")
	if err := h.engine.HandleRecord(context.Background(), rec); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}
	if len(h.dlq.records) != 1 || h.dlq.records[0].FailureType != models.FailureTypeEncoding {
		t.Fatalf("expected encoding DLQ record, got %+v", h.dlq.records)
	}
	if got := dispatcher.requests[0].ID; got != "key-1" {
		t.Fatalf("expected request ID from record key, got %q", got)
	}
}

func TestHandleRecordRejectsOversizedPayload(t *testing.T) {
	dispatcher := &dispatcherStub{}
	h := newHarness(t, worker.Config{MsgMaxBytes: 10}, dispatcher)
	commits := &commitCounter{}

	payload := `{"recipients":["+447700900001"],"body":"hello"}`
	if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(payload), commits.commit)); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}
	if len(dispatcher.requests) != 0 {
		t.Fatalf("expected no dispatch")
	}
	if len(h.dlq.records) != 1 || h.dlq.records[0].FailureType != models.FailureTypeValidation {
		t.Fatalf("expected validation DLQ record, got %+v", h.dlq.records)
	}
	if commits.count != 1 {
		t.Fatalf("expected commit, got %d", commits.count)
	}
}

func TestHandleRecordLeavesUnexpectedFailuresUncommitted(t *testing.T) {
	dispatcher := &dispatcherStub{err: errors.New("boom")}
	h := newHarness(t, worker.Config{}, dispatcher)
	commits := &commitCounter{}

	err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(`{"recipients":["+447700900001"],"body":"hi"}`), commits.commit))
	if err == nil {
		t.Fatalf("expected error")
	}
	if commits.count != 0 {
		t.Fatalf("expected no commit, got %d", commits.count)
	}
	if dispatcher.requests[0].ID == "" {
		t.Fatalf("expected a generated request ID")
	}
}

func TestHandleRecordCommitsWhenEventPublishFails(t *testing.T) {
	dispatcher := &dispatcherStub{result: &models.DispatchResult{
		RequestID: "req-3",
		Outcomes:  []models.RecipientOutcome{{Recipient: "+447700900001", Handle: "h-1", Attempts: 1}},
	}}
	h := newHarness(t, worker.Config{}, dispatcher)
	h.events.err = errors.New("broker down")
	commits := &commitCounter{}

	if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(`{"recipients":["+447700900001"],"body":"hi"}`), commits.commit)); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}
	if commits.count != 1 {
		t.Fatalf("expected commit, got %d", commits.count)
	}
}

func TestHandleRecordPropagatesCommitError(t *testing.T) {
	dispatcher := &dispatcherStub{}
	h := newHarness(t, worker.Config{}, dispatcher)
	commits := &commitCounter{err: errors.New("rebalanced")}

	if err := h.engine.HandleRecord(context.Background(), worker.NewRecord([]byte(`nope`), commits.commit)); err == nil {
		t.Fatalf("expected commit error")
	}
}

func TestNewEngineValidatesDependencies(t *testing.T) {
	if _, err := worker.NewEngine(worker.Config{}, worker.Dependencies{}); err == nil {
		t.Fatalf("expected error without dependencies")
	}
	if _, err := worker.NewEngine(worker.Config{MsgMaxBytes: -1}, worker.Dependencies{
		Dispatcher:     &dispatcherStub{},
		EventPublisher: &eventCollector{},
		DLQPublisher:   &dlqCollector{},
	}); err == nil {
		t.Fatalf("expected error for negative size limit")
	}
}
