// Package tracking answers status and cost questions about previously issued
// delivery handles.
package tracking

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
	"github.com/example/bulksms/internal/smserr"
)

// Recorder receives one observation per gateway query.
type Recorder interface {
	ObserveQuery(outcome string)
}

// Client issues exactly one gateway query per call. Nothing is cached and
// failures are returned as they come.
type Client struct {
	transport smsprovider.Transport
	recorder  Recorder
	logger    zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithRecorder reports query outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient wraps transport for handle lookups.
func NewClient(transport smsprovider.Transport, opts ...Option) (*Client, error) {
	if transport == nil {
		return nil, errors.New("tracking: transport is required")
	}
	c := &Client{transport: transport, recorder: nopRecorder{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logger.ForComponent(c.logger, "tracking_client")
	return c, nil
}

// Status returns the current delivery status of handle.
func (c *Client) Status(ctx context.Context, handle models.DeliveryHandle) (models.DeliveryStatus, error) {
	report, err := c.query(ctx, handle)
	if err != nil {
		return "", err
	}
	return report.Status, nil
}

// Cost returns the credits charged for handle.
func (c *Client) Cost(ctx context.Context, handle models.DeliveryHandle) (float64, error) {
	report, err := c.query(ctx, handle)
	if err != nil {
		return 0, err
	}
	return report.Cost, nil
}

func (c *Client) query(ctx context.Context, handle models.DeliveryHandle) (models.Report, error) {
	if strings.TrimSpace(handle.String()) == "" {
		return models.Report{}, smserr.Validation(errors.New("tracking: handle is required"))
	}

	report, err := c.transport.Query(ctx, handle)
	if err != nil {
		if smserr.Kind(err) == "unknown" {
			err = smserr.Transport(err)
		}
		c.recorder.ObserveQuery(smserr.Kind(err))
		c.logger.Warn().
			Str("handle", handle.String()).
			Err(err).
			Msg("tracking: query failed")
		return models.Report{}, err
	}

	c.recorder.ObserveQuery("ok")
	c.logger.Debug().
		Str("handle", handle.String()).
		Str("status", string(report.Status)).
		Float64("cost", report.Cost).
		Msg("tracking: query completed")
	return report, nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string) {}
