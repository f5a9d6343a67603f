package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

// Scenario enumerates the mock behaviours supported by the SMS provider.
type Scenario string

const (
	ScenarioSuccess   Scenario = "success"
	ScenarioTransient Scenario = "transient"
	ScenarioPermanent Scenario = "permanent"
	ScenarioAuth      Scenario = "auth"
	ScenarioQuota     Scenario = "quota"
	ScenarioTimeout   Scenario = "timeout"
)

// Option customises the mock provider.
type Option func(*MockProvider)

// WithScenario sets the scenario used for recipients without a script.
func WithScenario(s Scenario) Option {
	return func(p *MockProvider) {
		p.defaultScenario = s
	}
}

// WithRecipientScenarios scripts consecutive submissions to recipient. The
// last scenario repeats once the script is exhausted.
func WithRecipientScenarios(recipient string, scenarios ...Scenario) Option {
	return func(p *MockProvider) {
		if len(scenarios) > 0 {
			p.scripts[recipient] = append([]Scenario(nil), scenarios...)
		}
	}
}

// WithLatency configures the artificial latency injected before sending.
func WithLatency(d time.Duration) Option {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// WithClock overrides the clock used to timestamp submissions (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithCostPerSegment sets the credits charged for each segment.
func WithCostPerSegment(credits float64) Option {
	return func(p *MockProvider) {
		p.costPerSegment = credits
	}
}

// MockProvider is a deterministic in-memory gateway used for tests and dry
// runs. It issues UUID handles and remembers them for Query.
type MockProvider struct {
	logger          zerolog.Logger
	defaultScenario Scenario
	latency         time.Duration
	now             func() time.Time
	costPerSegment  float64

	mu          sync.Mutex
	scripts     map[string][]Scenario
	submissions []Submission
	queries     int
	reports     map[models.DeliveryHandle]models.Report
}

// NewMockProvider constructs a mock SMS provider.
func NewMockProvider(log zerolog.Logger, opts ...Option) *MockProvider {
	p := &MockProvider{
		logger:          logger.ForComponent(log, "sms_mock_provider"),
		defaultScenario: ScenarioSuccess,
		latency:         25 * time.Millisecond,
		now:             time.Now,
		costPerSegment:  1,
		scripts:         make(map[string][]Scenario),
		reports:         make(map[models.DeliveryHandle]models.Report),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Submit simulates a submission according to the recipient's scenario.
func (p *MockProvider) Submit(ctx context.Context, sub *Submission) (models.DeliveryHandle, error) {
	if sub == nil {
		return "", smserr.Validation(errors.New("sms mock: submission is required"))
	}

	// honour context cancellation before work begins
	select {
	case <-ctx.Done():
		return "", smserr.Transport(ctx.Err())
	default:
	}

	scenario := p.record(sub)

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", smserr.Transport(ctx.Err())
		case <-timer.C:
		}
	}

	switch scenario {
	case ScenarioSuccess:
		handle := models.DeliveryHandle(uuid.NewString())
		status := models.StatusAccepted
		if sub.Options.Scheduled() {
			status = models.StatusScheduled
		}
		p.mu.Lock()
		p.reports[handle] = models.Report{Status: status, Cost: p.costPerSegment * float64(sub.Message.SegmentCount())}
		p.mu.Unlock()
		p.logger.Debug().
			Str("recipient", sub.Recipient).
			Str("handle", handle.String()).
			Msg("sms mock: message accepted")
		return handle, nil
	case ScenarioTransient:
		return "", smserr.Transport(errors.New("sms mock: rate limited"))
	case ScenarioPermanent:
		return "", smserr.Validation(fmt.Errorf("sms mock: invalid recipient %s", sub.Recipient))
	case ScenarioAuth:
		return "", smserr.Auth(errors.New("sms mock: credentials rejected"))
	case ScenarioQuota:
		return "", smserr.Quota(errors.New("sms mock: insufficient credits"))
	case ScenarioTimeout:
		// Simulate a timeout by waiting until the context expires.
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", smserr.Transport(ctx.Err())
		case <-timer.C:
			return "", smserr.Transport(errors.New("sms mock: timeout"))
		}
	default:
		return "", smserr.Validation(fmt.Errorf("sms mock: unknown scenario %s", scenario))
	}
}

// Query returns the stored report for handle.
func (p *MockProvider) Query(ctx context.Context, handle models.DeliveryHandle) (models.Report, error) {
	if err := ctx.Err(); err != nil {
		return models.Report{}, smserr.Transport(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	report, ok := p.reports[handle]
	if !ok {
		return models.Report{}, smserr.NotFound(fmt.Errorf("sms mock: unknown handle %q", handle))
	}
	return report, nil
}

// SetReport overrides the report returned for handle.
func (p *MockProvider) SetReport(handle models.DeliveryHandle, report models.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports[handle] = report
}

// Submissions returns every submission received so far.
func (p *MockProvider) Submissions() []Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Submission(nil), p.submissions...)
}

// Attempts counts submissions made for recipient.
func (p *MockProvider) Attempts(recipient string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.submissions {
		if s.Recipient == recipient {
			n++
		}
	}
	return n
}

// Queries counts Query calls.
func (p *MockProvider) Queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

func (p *MockProvider) record(sub *Submission) Scenario {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissions = append(p.submissions, *sub)

	script, ok := p.scripts[sub.Recipient]
	if !ok {
		return p.defaultScenario
	}
	next := script[0]
	if len(script) > 1 {
		p.scripts[sub.Recipient] = script[1:]
	}
	return Scenario(strings.ToLower(string(next)))
}
