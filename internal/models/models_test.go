package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

func TestParseSendOptions(t *testing.T) {
	opts, err := models.ParseSendOptions(map[string]any{
		"sender":       " Acme ",
		"priority":     "true",
		"scheduled_at": "2026-01-02T15:04:05Z",
	})
	if err != nil {
		t.Fatalf("ParseSendOptions: %v", err)
	}
	if opts.Sender != "Acme" || !opts.Priority {
		t.Fatalf("unexpected options: %+v", opts)
	}
	want := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	if !opts.ScheduledAt.Equal(want) || !opts.Scheduled() {
		t.Fatalf("scheduled_at = %v, want %v", opts.ScheduledAt, want)
	}
}

func TestParseSendOptionsRejectsUnknownKeys(t *testing.T) {
	_, err := models.ParseSendOptions(map[string]any{"flash": true, "priority": 3})
	if !errors.Is(err, smserr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var fields smserr.FieldErrors
	if !errors.As(err, &fields) || len(fields) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if fields[0].Field != "options.flash" || fields[1].Field != "options.priority" {
		t.Fatalf("unexpected field order: %+v", fields)
	}
}

func TestParseSendOptionsEmpty(t *testing.T) {
	opts, err := models.ParseSendOptions(nil)
	if err != nil {
		t.Fatalf("ParseSendOptions(nil): %v", err)
	}
	if opts != (models.SendOptions{}) {
		t.Fatalf("expected zero options, got %+v", opts)
	}
}

func TestParseDeliveryStatus(t *testing.T) {
	s, err := models.ParseDeliveryStatus(" delivered ")
	if err != nil || s != models.StatusDelivered || !s.Final() {
		t.Fatalf("ParseDeliveryStatus = (%q, %v)", s, err)
	}
	if _, err := models.ParseDeliveryStatus("LOST"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestMessageIsImmutable(t *testing.T) {
	segs := []models.Segment{{Index: 1, Total: 1, Payload: "hi", Units: 2}}
	msg := models.NewMessage("hi", models.AlphabetRestricted, segs)
	segs[0].Payload = "changed"
	got := msg.Segments()
	got[0].Payload = "also changed"
	if msg.Segments()[0].Payload != "hi" {
		t.Fatalf("message segments were mutated")
	}
	if msg.RequiresExtendedAlphabet() || msg.Units() != 2 {
		t.Fatalf("unexpected derived fields")
	}
}

func TestDispatchResultAccessors(t *testing.T) {
	boom := smserr.Quota(errors.New("no credits"))
	res := &models.DispatchResult{Outcomes: []models.RecipientOutcome{
		{Recipient: "+1000", Handle: "h1", Attempts: 1},
		{Recipient: "+2000", Err: boom, Attempts: 1},
	}}
	if res.Succeeded() != 1 {
		t.Fatalf("Succeeded = %d", res.Succeeded())
	}
	if h := res.Handles(); h["+1000"] != "h1" || len(h) != 1 {
		t.Fatalf("Handles = %v", h)
	}
	if f := res.Failures(); !errors.Is(f["+2000"], smserr.ErrQuota) {
		t.Fatalf("Failures = %v", f)
	}
	if _, ok := res.Lookup("+3000"); ok {
		t.Fatalf("unexpected lookup hit")
	}
}

func TestNewSendRequestAssignsID(t *testing.T) {
	a := models.NewSendRequest([]string{"+1000"}, "hi", models.SendOptions{})
	b := models.NewSendRequest([]string{"+1000"}, "hi", models.SendOptions{})
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
}
