// Package dispatch fans a single logical send out to many recipients through
// a gateway transport, retrying transient failures per recipient.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
	"github.com/example/bulksms/internal/smserr"
)

// Config contains the retry and concurrency settings of the orchestrator.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Concurrency int
}

// Planner classifies and segments a message body.
type Planner interface {
	Message(body string) (models.Message, error)
}

// Recorder receives dispatch measurements. Outcomes are "ok" or an error
// kind as returned by smserr.Kind.
type Recorder interface {
	ObserveAttempt(outcome string, d time.Duration)
	ObserveRecipient(outcome string, attempts int)
	ObserveMessage(alphabet string, segments int)
}

// Dependencies collects the runtime collaborators required by the orchestrator.
type Dependencies struct {
	Transport smsprovider.Transport
	Planner   Planner
	Recorder  Recorder
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Orchestrator validates send requests, plans the message once and submits
// it to every recipient concurrently. The concurrency bound is shared by all
// Dispatch calls on the same Orchestrator.
type Orchestrator struct {
	cfg       Config
	transport smsprovider.Transport
	planner   Planner
	recorder  Recorder
	logger    zerolog.Logger

	semaphore *semaphore.Weighted

	now func() time.Time

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewOrchestrator constructs an orchestrator using the supplied configuration
// and collaborators.
func NewOrchestrator(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if cfg.MaxAttempts < 1 {
		return nil, errors.New("dispatch: max attempts must be >= 1")
	}
	if cfg.Concurrency < 1 {
		return nil, errors.New("dispatch: concurrency must be >= 1")
	}
	if cfg.BaseBackoff < 0 || cfg.MaxBackoff < 0 {
		return nil, errors.New("dispatch: backoff cannot be negative")
	}
	if deps.Transport == nil {
		return nil, errors.New("dispatch: transport dependency is required")
	}
	if deps.Planner == nil {
		return nil, errors.New("dispatch: planner dependency is required")
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Orchestrator{
		cfg:       cfg,
		transport: deps.Transport,
		planner:   deps.Planner,
		recorder:  recorder,
		logger:    logger.ForComponent(deps.Logger, "dispatch_orchestrator"),
		semaphore: semaphore.NewWeighted(int64(cfg.Concurrency)),
		now:       nowFunc,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Dispatch sends req.Body to every recipient of req. Validation and planning
// failures abort the whole send before any transport call and are returned
// as the error. Otherwise the result holds one outcome per distinct
// recipient, in request order, and the error is nil even when some or all
// recipients failed.
//
// Submissions already in flight when ctx is cancelled run to completion.
// Recipients not yet started, or waiting to retry, are reported as cancelled.
func (o *Orchestrator) Dispatch(ctx context.Context, req models.SendRequest) (*models.DispatchResult, error) {
	recipients, opts, err := validateRequest(req)
	if err != nil {
		o.logger.Warn().
			Str("request_id", req.ID).
			Err(err).
			Msg("dispatch: request rejected")
		return nil, err
	}

	msg, err := o.planner.Message(req.Body)
	if err != nil {
		o.logger.Warn().
			Str("request_id", req.ID).
			Err(err).
			Msg("dispatch: message could not be planned")
		return nil, err
	}
	o.recorder.ObserveMessage(msg.Alphabet().String(), msg.SegmentCount())

	result := &models.DispatchResult{
		RequestID: req.ID,
		Message:   msg,
		Outcomes:  make([]models.RecipientOutcome, len(recipients)),
	}
	for i, r := range recipients {
		result.Outcomes[i].Recipient = r
	}

	var wg sync.WaitGroup
	for i, recipient := range recipients {
		if err := o.acquire(ctx); err != nil {
			for j := i; j < len(recipients); j++ {
				result.Outcomes[j].Err = smserr.Cancelled(err)
				o.recorder.ObserveRecipient(smserr.Kind(result.Outcomes[j].Err), 0)
			}
			o.logger.Warn().
				Str("request_id", req.ID).
				Int("cancelled", len(recipients)-i).
				Msg("dispatch: cancelled before all recipients were started")
			break
		}

		sub := &smsprovider.Submission{
			RequestID: req.ID,
			Recipient: recipient,
			Message:   msg,
			Options:   opts,
		}
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			defer o.semaphore.Release(1)
			outcome := o.deliver(ctx, sub)
			result.Outcomes[slot] = outcome
			kind := "ok"
			if outcome.Err != nil {
				kind = smserr.Kind(outcome.Err)
			}
			o.recorder.ObserveRecipient(kind, outcome.Attempts)
		}(i)
	}
	wg.Wait()

	o.logger.Info().
		Str("request_id", req.ID).
		Str("alphabet", msg.Alphabet().String()).
		Int("segments", msg.SegmentCount()).
		Int("recipients", len(recipients)).
		Int("succeeded", result.Succeeded()).
		Msg("dispatch: send completed")

	return result, nil
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.semaphore.Acquire(ctx, 1)
}

func (o *Orchestrator) deliver(ctx context.Context, sub *smsprovider.Submission) models.RecipientOutcome {
	outcome := models.RecipientOutcome{Recipient: sub.Recipient}
	sendCtx := context.WithoutCancel(ctx)

	attempt := 1
	for {
		start := o.now()
		handle, err := o.transport.Submit(sendCtx, sub)
		duration := o.now().Sub(start)
		outcome.Attempts = attempt

		logEvent := o.logger.With().
			Str("request_id", sub.RequestID).
			Str("recipient", sub.Recipient).
			Int("attempt", attempt).
			Dur("duration", duration).
			Logger()

		if err == nil && handle == "" {
			err = smserr.Transport(errors.New("gateway returned an empty handle"))
		}
		if err == nil {
			o.recorder.ObserveAttempt("ok", duration)
			logEvent.Info().Str("handle", handle.String()).Msg("dispatch: message submitted")
			outcome.Handle = handle
			return outcome
		}

		// Unclassified failures are treated as transient.
		if smserr.Kind(err) == "unknown" {
			err = smserr.Transport(err)
		}
		o.recorder.ObserveAttempt(smserr.Kind(err), duration)

		if !smserr.IsRetryable(err) {
			logEvent.Warn().Err(err).Msg("dispatch: permanent failure")
			outcome.Err = err
			return outcome
		}
		if attempt >= o.cfg.MaxAttempts {
			logEvent.Warn().Err(err).Msg("dispatch: retry budget exhausted")
			outcome.Err = err
			return outcome
		}

		backoff := o.computeBackoff(attempt)
		logEvent.Info().Err(err).Dur("backoff", backoff).Msg("dispatch: scheduling retry after transient error")

		if !o.wait(ctx, backoff) {
			logEvent.Warn().Msg("dispatch: cancelled while waiting for retry")
			outcome.Err = smserr.Cancelled(fmt.Errorf("%w after %d attempt(s): %v", ctx.Err(), attempt, err))
			return outcome
		}

		attempt++
	}
}

func (o *Orchestrator) computeBackoff(attempt int) time.Duration {
	if o.cfg.BaseBackoff <= 0 {
		return 0
	}

	multiplier := math.Pow(2, float64(attempt-1))
	raw := time.Duration(float64(o.cfg.BaseBackoff) * multiplier)
	if o.cfg.MaxBackoff > 0 && raw > o.cfg.MaxBackoff {
		raw = o.cfg.MaxBackoff
	}

	return o.fullJitter(raw)
}

func (o *Orchestrator) fullJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	o.randMu.Lock()
	defer o.randMu.Unlock()

	n := o.rnd.Int63n(int64(max) + 1)
	return time.Duration(n)
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, time.Duration) {}
func (nopRecorder) ObserveRecipient(string, int)         {}
func (nopRecorder) ObserveMessage(string, int)           {}
