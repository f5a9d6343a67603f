package sms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
)

// TwilioMessageAPI is the subset of the Twilio REST API used by the provider.
// *twilioApi.ApiService satisfies it.
type TwilioMessageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
	FetchMessage(sid string, params *twilioApi.FetchMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioOption customises the Twilio SMS provider.
type TwilioOption func(*TwilioProvider)

// WithTwilioAPI replaces the Twilio REST client. Useful for tests.
func WithTwilioAPI(api TwilioMessageAPI) TwilioOption {
	return func(p *TwilioProvider) {
		if api != nil {
			p.api = api
		}
	}
}

// TwilioProvider submits messages through Twilio Programmable Messaging.
type TwilioProvider struct {
	logger              zerolog.Logger
	api                 TwilioMessageAPI
	defaultFrom         string
	messagingServiceSID string
}

// NewTwilioProvider constructs a Twilio-backed SMS provider.
func NewTwilioProvider(cfg config.TwilioConfig, log zerolog.Logger, opts ...TwilioOption) (*TwilioProvider, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, errors.New("twilio sms provider: account SID is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio sms provider: auth token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumber) == "" && strings.TrimSpace(cfg.MessagingServiceSID) == "" {
		return nil, errors.New("twilio sms provider: phone number or messaging service SID is required")
	}

	provider := &TwilioProvider{
		logger:              logger.ForComponent(log, "twilio_sms_provider"),
		defaultFrom:         strings.TrimSpace(cfg.PhoneNumber),
		messagingServiceSID: strings.TrimSpace(cfg.MessagingServiceSID),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	if provider.api == nil {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: strings.TrimSpace(cfg.AccountSID),
			Password: strings.TrimSpace(cfg.AuthToken),
		})
		provider.api = client.Api
	}
	return provider, nil
}

// Submit creates one Twilio message for the recipient. Scheduled sends need a
// messaging service.
func (p *TwilioProvider) Submit(ctx context.Context, sub *Submission) (models.DeliveryHandle, error) {
	if sub == nil {
		return "", smserr.Validation(errors.New("twilio sms provider: submission is required"))
	}
	if err := ctx.Err(); err != nil {
		return "", smserr.Transport(err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(sub.Recipient)
	params.SetBody(sub.Message.Body())

	from := p.defaultFrom
	if sub.Options.Sender != "" {
		from = sub.Options.Sender
	}
	if from != "" {
		params.SetFrom(from)
	}
	if p.messagingServiceSID != "" {
		params.SetMessagingServiceSid(p.messagingServiceSID)
	}
	if sub.Options.Scheduled() {
		if p.messagingServiceSID == "" {
			return "", smserr.Validation(errors.New("twilio sms provider: scheduled delivery requires a messaging service SID"))
		}
		params.SetScheduleType("fixed")
		params.SetSendAt(sub.Options.ScheduledAt.UTC())
	}

	msg, err := p.api.CreateMessage(params)
	if err != nil {
		return "", classifyTwilioError(err, false)
	}
	if msg == nil || msg.Sid == nil || *msg.Sid == "" {
		return "", smserr.Transport(errors.New("twilio sms provider: unable to parse result from server: missing sid"))
	}

	handle := models.DeliveryHandle(*msg.Sid)
	p.logger.Debug().
		Str("recipient", sub.Recipient).
		Str("handle", handle.String()).
		Msg("twilio sms provider: message submitted")
	return handle, nil
}

// Query fetches the message resource for handle.
func (p *TwilioProvider) Query(ctx context.Context, handle models.DeliveryHandle) (models.Report, error) {
	if strings.TrimSpace(handle.String()) == "" {
		return models.Report{}, smserr.NotFound(errors.New("twilio sms provider: handle is empty"))
	}
	if err := ctx.Err(); err != nil {
		return models.Report{}, smserr.Transport(err)
	}

	msg, err := p.api.FetchMessage(handle.String(), &twilioApi.FetchMessageParams{})
	if err != nil {
		return models.Report{}, classifyTwilioError(err, true)
	}
	if msg == nil || msg.Status == nil {
		return models.Report{}, smserr.Transport(errors.New("twilio sms provider: unable to parse result from server: missing status"))
	}

	status, err := twilioStatus(*msg.Status)
	if err != nil {
		return models.Report{}, smserr.Transport(fmt.Errorf("twilio sms provider: unable to parse result from server: %w", err))
	}
	var cost float64
	if msg.Price != nil && strings.TrimSpace(*msg.Price) != "" {
		price, err := strconv.ParseFloat(strings.TrimSpace(*msg.Price), 64)
		if err != nil {
			return models.Report{}, smserr.Transport(fmt.Errorf("twilio sms provider: unable to parse result from server: price %q", *msg.Price))
		}
		// Twilio reports charges as negative amounts.
		cost = math.Abs(price)
	}
	return models.Report{Status: status, Cost: cost}, nil
}

func twilioStatus(value string) (models.DeliveryStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "queued", "accepted", "sending", "receiving", "received":
		return models.StatusAccepted, nil
	case "scheduled":
		return models.StatusScheduled, nil
	case "sent":
		return models.StatusSent, nil
	case "delivered", "read":
		return models.StatusDelivered, nil
	case "failed", "undelivered", "canceled":
		return models.StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown twilio status %q", value)
	}
}

func classifyTwilioError(err error, query bool) error {
	var restErr *twilioclient.TwilioRestError
	if !errors.As(err, &restErr) {
		return smserr.Transport(fmt.Errorf("twilio sms provider: %w", err))
	}

	wrapped := fmt.Errorf("twilio sms provider: error %d: %s", restErr.Code, restErr.Message)
	switch restErr.Code {
	case 21610, 21612, 21614, 21211, 21408, 30003, 30005:
		return smserr.Validation(wrapped)
	case 30001, 20429:
		return smserr.Transport(wrapped)
	case 20003, 30002:
		return smserr.Auth(wrapped)
	case 20404:
		if query {
			return smserr.NotFound(wrapped)
		}
	}

	switch {
	case restErr.Status == http.StatusUnauthorized, restErr.Status == http.StatusForbidden:
		return smserr.Auth(wrapped)
	case restErr.Status == http.StatusPaymentRequired:
		return smserr.Quota(wrapped)
	case restErr.Status == http.StatusNotFound && query:
		return smserr.NotFound(wrapped)
	case restErr.Status == http.StatusTooManyRequests, restErr.Status >= http.StatusInternalServerError:
		return smserr.Transport(wrapped)
	case restErr.Status >= http.StatusBadRequest:
		return smserr.Validation(wrapped)
	default:
		return smserr.Transport(wrapped)
	}
}
