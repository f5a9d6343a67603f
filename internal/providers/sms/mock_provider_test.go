package sms_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/models"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
	"github.com/example/bulksms/internal/smserr"
)

func submission(recipient string) *smsprovider.Submission {
	return &smsprovider.Submission{Recipient: recipient, Message: textMessage("hello", 2)}
}

func TestMockProviderSuccessAndQuery(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop(), smsprovider.WithLatency(0), smsprovider.WithCostPerSegment(0.5))

	handle, err := provider.Submit(context.Background(), submission("+10000000001"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	report, err := provider.Query(context.Background(), handle)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if report.Status != models.StatusAccepted || report.Cost != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestMockProviderScriptedScenarios(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop(),
		smsprovider.WithLatency(0),
		smsprovider.WithRecipientScenarios("+2", smsprovider.ScenarioTransient, smsprovider.ScenarioSuccess),
		smsprovider.WithRecipientScenarios("+3", smsprovider.ScenarioQuota),
	)

	if _, err := provider.Submit(context.Background(), submission("+2")); !errors.Is(err, smserr.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, err := provider.Submit(context.Background(), submission("+2")); err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := provider.Submit(context.Background(), submission("+3")); !errors.Is(err, smserr.ErrQuota) {
			t.Fatalf("expected quota error, got %v", err)
		}
	}
	if provider.Attempts("+2") != 2 || provider.Attempts("+3") != 2 {
		t.Fatalf("unexpected attempt counts")
	}
}

func TestMockProviderUnknownScenarioIsNotRetried(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop(),
		smsprovider.WithLatency(0),
		smsprovider.WithRecipientScenarios("+4", smsprovider.Scenario("transiant")),
	)

	_, err := provider.Submit(context.Background(), submission("+4"))
	if !errors.Is(err, smserr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if smserr.IsRetryable(err) {
		t.Fatalf("expected unknown scenario to be final")
	}
}

func TestMockProviderUnknownHandle(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop())
	if _, err := provider.Query(context.Background(), "nope"); !errors.Is(err, smserr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if provider.Queries() != 1 {
		t.Fatalf("expected one query")
	}
}

func TestMockProviderTimeoutScenario(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop(), smsprovider.WithLatency(25*time.Millisecond), smsprovider.WithScenario(smsprovider.ScenarioTimeout))

	start := time.Now()
	_, err := provider.Submit(context.Background(), submission("+1"))
	if !errors.Is(err, smserr.ErrTransport) {
		t.Fatalf("expected transport timeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("expected delay for timeout scenario")
	}
}

func TestMockProviderRespectsContextCancellation(t *testing.T) {
	provider := smsprovider.NewMockProvider(zerolog.Nop(), smsprovider.WithLatency(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := provider.Submit(ctx, submission("+1")); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}
