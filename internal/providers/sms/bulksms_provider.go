package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/config"
	"github.com/example/bulksms/internal/logger"
	"github.com/example/bulksms/internal/models"
	"github.com/example/bulksms/internal/smserr"
	"github.com/example/bulksms/internal/util"
)

const (
	defaultBulkSMSBaseURL = "https://api.bulksms.com/v1"
	defaultBulkSMSTimeout = 4 * time.Second
	defaultBodyLimit      = 16 * 1024
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BulkSMSOption customises the BulkSMS provider.
type BulkSMSOption func(*BulkSMSProvider)

// WithBulkSMSHTTPClient overrides the HTTP client used to talk to BulkSMS.
func WithBulkSMSHTTPClient(client HTTPClient) BulkSMSOption {
	return func(p *BulkSMSProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithBulkSMSBaseURL sets the API base URL. Useful for tests.
func WithBulkSMSBaseURL(baseURL string) BulkSMSOption {
	return func(p *BulkSMSProvider) {
		if strings.TrimSpace(baseURL) != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithBulkSMSTimeout sets the per-request timeout of the default HTTP client.
func WithBulkSMSTimeout(d time.Duration) BulkSMSOption {
	return func(p *BulkSMSProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBulkSMSBodyLimit adjusts how many bytes are read from a response body.
func WithBulkSMSBodyLimit(limit int64) BulkSMSOption {
	return func(p *BulkSMSProvider) {
		if limit > 0 {
			p.maxBodyBytes = limit
		}
	}
}

// BulkSMSProvider submits messages through the BulkSMS JSON API and queries
// their delivery state. Each submission addresses exactly one recipient so
// every recipient receives its own message ID.
type BulkSMSProvider struct {
	logger       zerolog.Logger
	username     string
	password     string
	sender       string
	routingGroup string
	httpClient   HTTPClient
	baseURL      string
	timeout      time.Duration
	maxBodyBytes int64
}

// NewBulkSMSProvider constructs a BulkSMS-backed provider from cfg. A token
// pair takes precedence over a login pair.
func NewBulkSMSProvider(cfg config.BulkSMSConfig, log zerolog.Logger, opts ...BulkSMSOption) (*BulkSMSProvider, error) {
	user, pass, ok := cfg.Credentials()
	if !ok {
		return nil, errors.New("bulksms provider: either token or login credentials are required")
	}
	sender, err := util.NormalizeSender(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("bulksms provider: %w", err)
	}
	group, err := config.NormalizeRoutingGroup(cfg.RoutingGroup)
	if err != nil {
		return nil, fmt.Errorf("bulksms provider: %w", err)
	}

	provider := &BulkSMSProvider{
		logger:       logger.ForComponent(log, "bulksms_provider"),
		username:     user,
		password:     pass,
		sender:       sender,
		routingGroup: group,
		baseURL:      defaultBulkSMSBaseURL,
		timeout:      defaultBulkSMSTimeout,
		maxBodyBytes: defaultBodyLimit,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		provider.baseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}

	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}

	if provider.httpClient == nil {
		provider.httpClient = &http.Client{Timeout: provider.timeout}
	}

	return provider, nil
}

// RoutingGroup returns the group used for a send with the given priority.
func (p *BulkSMSProvider) RoutingGroup(priority bool) string {
	if priority {
		return config.RoutingGroups[len(config.RoutingGroups)-1]
	}
	return p.routingGroup
}

type bulkSMSSubmit struct {
	To                  string `json:"to"`
	From                string `json:"from,omitempty"`
	Body                string `json:"body"`
	Encoding            string `json:"encoding"`
	RoutingGroup        string `json:"routingGroup"`
	LongMessageMaxParts int    `json:"longMessageMaxParts"`
}

type bulkSMSMessage struct {
	ID         string          `json:"id"`
	CreditCost json.RawMessage `json:"creditCost"`
	Status     *struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
	} `json:"status"`
}

type bulkSMSProblem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// Submit posts the message to /messages for a single recipient.
func (p *BulkSMSProvider) Submit(ctx context.Context, sub *Submission) (models.DeliveryHandle, error) {
	if sub == nil {
		return "", smserr.Validation(errors.New("bulksms provider: submission is required"))
	}

	// The planner splits at the gateway's own limits, so the local part count
	// is the number the gateway will bill.
	payload := bulkSMSSubmit{
		To:                  sub.Recipient,
		From:                p.sender,
		Body:                sub.Message.Body(),
		Encoding:            encodingName(sub.Message.Alphabet()),
		RoutingGroup:        p.RoutingGroup(sub.Options.Priority),
		LongMessageMaxParts: sub.Message.SegmentCount(),
	}
	if sub.Options.Sender != "" {
		sender, err := util.NormalizeSender(sub.Options.Sender)
		if err != nil {
			return "", smserr.Validation(err)
		}
		payload.From = sender
	}

	query := url.Values{}
	if sub.Options.Scheduled() {
		query.Set("schedule-date", sub.Options.ScheduledAt.UTC().Format(time.RFC3339))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", smserr.Validation(fmt.Errorf("bulksms provider: encode request: %w", err))
	}

	status, respBody, err := p.do(ctx, http.MethodPost, p.endpoint("messages", query), body)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", classifyBulkSMSStatus(status, respBody, false)
	}

	var messages []bulkSMSMessage
	if err := json.Unmarshal(respBody, &messages); err != nil || len(messages) == 0 || messages[0].ID == "" {
		return "", smserr.Transport(fmt.Errorf("bulksms provider: unable to parse result from server: %q", truncate(respBody)))
	}

	handle := models.DeliveryHandle(messages[0].ID)
	p.logger.Debug().
		Str("recipient", sub.Recipient).
		Str("handle", handle.String()).
		Str("encoding", payload.Encoding).
		Str("routing_group", payload.RoutingGroup).
		Msg("bulksms provider: message submitted")
	return handle, nil
}

// Query fetches the current state and credit cost of handle.
func (p *BulkSMSProvider) Query(ctx context.Context, handle models.DeliveryHandle) (models.Report, error) {
	if strings.TrimSpace(handle.String()) == "" {
		return models.Report{}, smserr.NotFound(errors.New("bulksms provider: handle is empty"))
	}

	query := url.Values{}
	query.Set("filter", url.Values{"type": {"SENT"}}.Encode())

	status, respBody, err := p.do(ctx, http.MethodGet, p.endpoint("messages/"+url.PathEscape(handle.String()), query), nil)
	if err != nil {
		return models.Report{}, err
	}
	if status < 200 || status >= 300 {
		return models.Report{}, classifyBulkSMSStatus(status, respBody, true)
	}

	var msg bulkSMSMessage
	if err := json.Unmarshal(respBody, &msg); err != nil || msg.Status == nil {
		return models.Report{}, smserr.Transport(fmt.Errorf("bulksms provider: unable to parse result from server: %q", truncate(respBody)))
	}
	deliveryStatus, err := models.ParseDeliveryStatus(msg.Status.Type)
	if err != nil {
		return models.Report{}, smserr.Transport(fmt.Errorf("bulksms provider: unable to parse result from server: %w", err))
	}
	cost, err := parseCredits(msg.CreditCost)
	if err != nil {
		return models.Report{}, smserr.Transport(fmt.Errorf("bulksms provider: unable to parse result from server: %w", err))
	}
	return models.Report{Status: deliveryStatus, Cost: cost}, nil
}

func (p *BulkSMSProvider) endpoint(resource string, query url.Values) string {
	u := p.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(query) == 0 {
		return u
	}
	return u + "?" + query.Encode()
}

func (p *BulkSMSProvider) do(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, smserr.Validation(fmt.Errorf("bulksms provider: new request: %w", err))
	}
	req.SetBasicAuth(p.username, p.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, smserr.Transport(fmt.Errorf("bulksms provider: http do: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, smserr.Transport(fmt.Errorf("bulksms provider: read body: %w", err))
	}
	return resp.StatusCode, data, nil
}

func classifyBulkSMSStatus(status int, body []byte, query bool) error {
	var problem bulkSMSProblem
	_ = json.Unmarshal(body, &problem)

	message := strings.TrimSpace(problem.Detail)
	if message == "" {
		message = strings.TrimSpace(problem.Title)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	err := fmt.Errorf("bulksms provider: http %d: %s", status, message)

	switch {
	case strings.Contains(strings.ToLower(problem.Type), "insufficient-credits"), status == http.StatusPaymentRequired:
		return smserr.Quota(err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return smserr.Auth(err)
	case status == http.StatusNotFound && query:
		return smserr.NotFound(err)
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= http.StatusInternalServerError:
		return smserr.Transport(err)
	case status >= http.StatusBadRequest:
		return smserr.Validation(err)
	default:
		return smserr.Transport(err)
	}
}

func encodingName(a models.Alphabet) string {
	if a == models.AlphabetExtended {
		return "UNICODE"
	}
	return "TEXT"
}

func parseCredits(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("creditCost missing")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("creditCost %s is not a number", raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("creditCost %q is not a number", s)
	}
	return n, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
