// Package bulksms is the caller-facing API for composing, sending and
// tracking SMS through a hosted gateway.
//
//	client, err := bulksms.NewFromEnv()
//	if err != nil {
//		return err
//	}
//	result, err := client.Send(ctx, []string{"+447700900001"}, "Happy birthday!", bulksms.SendOptions{Priority: true})
package bulksms

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/dispatch"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/metrics"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/providers/factory"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
	"github.com/example/bulksms/internal/segment"
	"github.com/example/bulksms/internal/tracking"
)

type (
	// SendOptions are applied to every recipient of a send.
	SendOptions = models.SendOptions
	// SendRequest is one logical send.
	SendRequest = models.SendRequest
	// Result holds one outcome per recipient, in request order.
	Result = models.DispatchResult
	// Message is a classified and segmented body.
	Message = models.Message
	// DeliveryHandle identifies one recipient of one send.
	DeliveryHandle = models.DeliveryHandle
	// DeliveryStatus is the normalised delivery state of a handle.
	DeliveryStatus = models.DeliveryStatus
)

// Delivery states.
const (
	StatusAccepted  = models.StatusAccepted
	StatusScheduled = models.StatusScheduled
	StatusSent      = models.StatusSent
	StatusDelivered = models.StatusDelivered
	StatusFailed    = models.StatusFailed
)

// Option customises a Client.
type Option func(*settings)

type settings struct {
	transport  smsprovider.Transport
	logger     zerolog.Logger
	registerer prometheus.Registerer
	refSource  func() uint8
}

// WithTransport replaces the configured gateway transport.
func WithTransport(t smsprovider.Transport) Option {
	return func(s *settings) {
		s.transport = t
	}
}

// WithLogger sets the logger shared by every component of the client.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithRegisterer records dispatch and tracking metrics in reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// WithRefSource overrides the concatenation reference generator.
func WithRefSource(next func() uint8) Option {
	return func(s *settings) {
		s.refSource = next
	}
}

// Client is an authenticated session with a delivery gateway. It is safe
// for concurrent use.
type Client struct {
	planner      *segment.Planner
	orchestrator *dispatch.Orchestrator
	tracker      *tracking.Client
	logger       zerolog.Logger
}

// NewFromEnv loads configuration from the environment and builds a Client.
func NewFromEnv(opts ...Option) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

// New builds a Client from cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("bulksms: config is required")
	}

	s := &settings{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	log := logger.ForComponent(s.logger, "bulksms_client")

	transport := s.transport
	if transport == nil {
		var err error
		transport, err = factory.SMS(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	plannerOpts := []segment.Option{
		segment.WithCapacities(segment.Capacities{
			SingleGSM:  cfg.Encoding.GSMSingle,
			ConcatGSM:  cfg.Encoding.GSMConcat,
			SingleUCS2: cfg.Encoding.UCS2Single,
			ConcatUCS2: cfg.Encoding.UCS2Concat,
		}),
		segment.WithMaxSegments(cfg.Dispatch.MaxSegments),
		segment.WithLogger(s.logger),
	}
	if s.refSource != nil {
		plannerOpts = append(plannerOpts, segment.WithRefSource(s.refSource))
	}
	planner, err := segment.NewPlanner(plannerOpts...)
	if err != nil {
		return nil, err
	}

	var recorder *metrics.Prometheus
	if s.registerer != nil {
		recorder, err = metrics.NewPrometheus(s.registerer)
		if err != nil {
			return nil, err
		}
	}

	deps := dispatch.Dependencies{
		Transport: transport,
		Planner:   planner,
		Logger:    s.logger,
	}
	trackingOpts := []tracking.Option{tracking.WithLogger(s.logger)}
	if recorder != nil {
		deps.Recorder = recorder
		trackingOpts = append(trackingOpts, tracking.WithRecorder(recorder))
	}

	orchestrator, err := dispatch.NewOrchestrator(dispatch.Config{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Dispatch.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.Dispatch.MaxBackoffMs) * time.Millisecond,
		Concurrency: cfg.Dispatch.Concurrency,
	}, deps)
	if err != nil {
		return nil, err
	}

	tracker, err := tracking.NewClient(transport, trackingOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		planner:      planner,
		orchestrator: orchestrator,
		tracker:      tracker,
		logger:       log,
	}, nil
}

// Send delivers body to every recipient. Recipients must be international
// numbers; separators are ignored and a leading 00 is read as +. The error
// is non-nil only when the send was rejected as a whole; per-recipient
// failures are reported in the result.
func (c *Client) Send(ctx context.Context, recipients []string, body string, opts SendOptions) (*Result, error) {
	return c.SendRequest(ctx, models.NewSendRequest(recipients, body, opts))
}

// SendRequest delivers a prepared request.
func (c *Client) SendRequest(ctx context.Context, req SendRequest) (*Result, error) {
	return c.orchestrator.Dispatch(ctx, req)
}

// SendOne delivers body to a single recipient and returns its handle.
func (c *Client) SendOne(ctx context.Context, recipient string, body string, opts SendOptions) (DeliveryHandle, error) {
	result, err := c.Send(ctx, []string{recipient}, body, opts)
	if err != nil {
		return "", err
	}
	outcome := result.Outcomes[0]
	if outcome.Err != nil {
		return "", outcome.Err
	}
	return outcome.Handle, nil
}

// Plan classifies and segments body without sending it.
func (c *Client) Plan(body string) (Message, error) {
	return c.planner.Message(body)
}

// DeliveryStatus queries the gateway for the current state of handle.
func (c *Client) DeliveryStatus(ctx context.Context, handle DeliveryHandle) (DeliveryStatus, error) {
	return c.tracker.Status(ctx, handle)
}

// DeliveryCost queries the gateway for the credits charged for handle.
func (c *Client) DeliveryCost(ctx context.Context, handle DeliveryHandle) (float64, error) {
	return c.tracker.Cost(ctx, handle)
}
