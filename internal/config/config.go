package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Gateway backends.
const (
	BackendBulkSMS = "bulksms"
	BackendTwilio  = "twilio"
	BackendMock    = "mock"
)

// Upper bounds for the segment capacities. One PDU carries 140 octets of user
// data and the concatenation header takes 6 of them; gateways split at the
// same limits, so a larger capacity would under-count the parts they bill.
const (
	MaxGSMSingle  = 160
	MaxGSMConcat  = 153
	MaxUCS2Single = 70
	MaxUCS2Concat = 67
)

// RoutingGroups lists the BulkSMS routing groups from cheapest to highest
// priority.
var RoutingGroups = []string{"ECONOMY", "STANDARD", "PREMIUM"}

// Config captures all runtime configuration for the SMS engine and its
// binaries.
type Config struct {
	App      AppConfig
	Gateway  GatewayConfig
	BulkSMS  BulkSMSConfig
	Twilio   TwilioConfig
	Dispatch DispatchConfig
	Encoding EncodingConfig
	Kafka    KafkaConfig
	Health   HealthConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// GatewayConfig selects the delivery gateway.
type GatewayConfig struct {
	Backend        string
	TimeoutSeconds int
}

// BulkSMSConfig stores BulkSMS credentials and session defaults. Either the
// token pair or the login pair must be present.
type BulkSMSConfig struct {
	BaseURL      string
	TokenID      string
	TokenSecret  string
	Username     string
	Password     string
	Sender       string
	RoutingGroup string
}

// Credentials returns the basic auth pair, preferring the token.
func (c BulkSMSConfig) Credentials() (user, pass string, ok bool) {
	if c.TokenID != "" {
		return c.TokenID, c.TokenSecret, true
	}
	if c.Username != "" {
		return c.Username, c.Password, true
	}
	return "", "", false
}

// TwilioConfig stores Twilio credentials for SMS delivery.
type TwilioConfig struct {
	AccountSID          string
	AuthToken           string
	PhoneNumber         string
	MessagingServiceSID string
}

// DispatchConfig controls fan-out concurrency and retry behaviour.
type DispatchConfig struct {
	MaxAttempts   int
	BaseBackoffMs int
	MaxBackoffMs  int
	Concurrency   int
	MaxSegments   int
}

// EncodingConfig holds the per-segment capacities in alphabet units.
type EncodingConfig struct {
	GSMSingle  int
	GSMConcat  int
	UCS2Single int
	UCS2Concat int
}

// KafkaConfig defines broker and topic settings for the worker.
type KafkaConfig struct {
	Brokers             []string
	RequestTopic        string
	StatusTopic         string
	DLQTopic            string
	ConsumerGroup       string
	CommitOnSuccessOnly bool
	MsgMaxBytes         int
}

// HealthConfig controls the worker's HTTP probe surface.
type HealthConfig struct {
	Listen         string
	CheckTimeoutMs int
}

// Load reads environment variables for library and CLI use. Kafka settings
// are read but not required.
func Load() (*Config, error) {
	return load(false)
}

// LoadWorker is Load with the Kafka settings required.
func LoadWorker() (*Config, error) {
	return load(true)
}

func load(requireKafka bool) (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Gateway.Backend = strings.ToLower(ldr.getString("SMS_GATEWAY", BackendBulkSMS, false))
	cfg.Gateway.TimeoutSeconds = ldr.getInt("GATEWAY_TIMEOUT_SECONDS", 4, false)

	cfg.BulkSMS.BaseURL = ldr.getString("BULKSMS_BASE_URL", "https://api.bulksms.com/v1", false)
	cfg.BulkSMS.Sender = ldr.getString("BULKSMS_SENDER", "", false)
	cfg.BulkSMS.RoutingGroup = ldr.getRoutingGroup("BULKSMS_DEFAULT_ROUTING")
	cfg.BulkSMS.TokenID, cfg.BulkSMS.TokenSecret = ldr.getPair("BULKSMS_AUTH_TOKEN")
	cfg.BulkSMS.Username, cfg.BulkSMS.Password = ldr.getPair("BULKSMS_AUTH_LOGIN")

	cfg.Twilio.AccountSID = ldr.getString("TWILIO_ACCOUNT_SID", "", false)
	cfg.Twilio.AuthToken = ldr.getString("TWILIO_AUTH_TOKEN", "", false)
	cfg.Twilio.PhoneNumber = ldr.getString("TWILIO_PHONE_NUMBER", "", false)
	cfg.Twilio.MessagingServiceSID = ldr.getString("TWILIO_MESSAGING_SERVICE_SID", "", false)

	switch cfg.Gateway.Backend {
	case BackendBulkSMS:
		if _, _, ok := cfg.BulkSMS.Credentials(); !ok {
			ldr.addError("BULKSMS_AUTH_TOKEN or BULKSMS_AUTH_LOGIN is required")
		}
	case BackendTwilio:
		if cfg.Twilio.AccountSID == "" {
			ldr.addError("TWILIO_ACCOUNT_SID is required")
		}
		if cfg.Twilio.AuthToken == "" {
			ldr.addError("TWILIO_AUTH_TOKEN is required")
		}
		if cfg.Twilio.PhoneNumber == "" && cfg.Twilio.MessagingServiceSID == "" {
			ldr.addError("TWILIO_PHONE_NUMBER or TWILIO_MESSAGING_SERVICE_SID is required")
		}
	case BackendMock:
	default:
		ldr.addError(fmt.Sprintf("SMS_GATEWAY %q is not supported", cfg.Gateway.Backend))
	}

	cfg.Dispatch.MaxAttempts = ldr.getInt("MAX_ATTEMPTS", 3, false)
	cfg.Dispatch.BaseBackoffMs = ldr.getInt("BASE_BACKOFF_MS", 500, false)
	cfg.Dispatch.MaxBackoffMs = ldr.getInt("MAX_BACKOFF_MS", 10000, false)
	cfg.Dispatch.Concurrency = ldr.getInt("DISPATCH_CONCURRENCY", 8, false)
	cfg.Dispatch.MaxSegments = ldr.getInt("SMS_MAX_SEGMENTS", 0, false)
	if cfg.Dispatch.MaxAttempts < 1 {
		ldr.addError("MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Dispatch.Concurrency < 1 {
		ldr.addError("DISPATCH_CONCURRENCY must be >= 1")
	}
	if cfg.Dispatch.MaxSegments < 0 {
		ldr.addError("SMS_MAX_SEGMENTS must be >= 0")
	}

	cfg.Encoding.GSMSingle = ldr.getInt("SMS_GSM_SINGLE_CAPACITY", 160, false)
	cfg.Encoding.GSMConcat = ldr.getInt("SMS_GSM_CONCAT_CAPACITY", 153, false)
	cfg.Encoding.UCS2Single = ldr.getInt("SMS_UCS2_SINGLE_CAPACITY", 70, false)
	cfg.Encoding.UCS2Concat = ldr.getInt("SMS_UCS2_CONCAT_CAPACITY", 67, false)
	ldr.checkCapacity("SMS_GSM_SINGLE_CAPACITY", cfg.Encoding.GSMSingle, MaxGSMSingle)
	ldr.checkCapacity("SMS_GSM_CONCAT_CAPACITY", cfg.Encoding.GSMConcat, MaxGSMConcat)
	ldr.checkCapacity("SMS_UCS2_SINGLE_CAPACITY", cfg.Encoding.UCS2Single, MaxUCS2Single)
	ldr.checkCapacity("SMS_UCS2_CONCAT_CAPACITY", cfg.Encoding.UCS2Concat, MaxUCS2Concat)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", requireKafka)
	cfg.Kafka.RequestTopic = ldr.getString("KAFKA_SMS_REQUEST_TOPIC", "", requireKafka)
	cfg.Kafka.StatusTopic = ldr.getString("KAFKA_SMS_STATUS_TOPIC", "", requireKafka)
	cfg.Kafka.DLQTopic = ldr.getString("KAFKA_SMS_DLQ_TOPIC", "", requireKafka)
	cfg.Kafka.ConsumerGroup = ldr.getString("SMS_CONSUMER_GROUP", "", requireKafka)
	cfg.Kafka.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)
	cfg.Kafka.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 200000, false)

	cfg.Health.Listen = ldr.getString("HEALTH_LISTEN", ":8080", false)
	cfg.Health.CheckTimeoutMs = ldr.getInt("HEALTH_CHECK_TIMEOUT_MS", 200, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SplitPair splits a colon separated "name:secret" credential.
func SplitPair(value string) (string, string, error) {
	name, secret, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || name == "" {
		return "", "", fmt.Errorf("credential must have the form name:secret")
	}
	return name, secret, nil
}

// NormalizeRoutingGroup upper-cases group and checks it against
// RoutingGroups. An empty group yields the cheapest one.
func NormalizeRoutingGroup(group string) (string, error) {
	group = strings.ToUpper(strings.TrimSpace(group))
	if group == "" {
		return RoutingGroups[0], nil
	}
	for _, g := range RoutingGroups {
		if g == group {
			return g, nil
		}
	}
	return "", fmt.Errorf("invalid routing group %q: valid choices are %s", group, strings.Join(RoutingGroups, ", "))
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) getPair(key string) (string, string) {
	raw := l.getString(key, "", false)
	if raw == "" {
		return "", ""
	}
	name, secret, err := SplitPair(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s: %v", key, err))
		return "", ""
	}
	return name, secret
}

func (l *envLoader) getRoutingGroup(key string) string {
	group, err := NormalizeRoutingGroup(l.getString(key, "", false))
	if err != nil {
		l.addError(fmt.Sprintf("%s: %v", key, err))
		return RoutingGroups[0]
	}
	return group
}

func (l *envLoader) checkCapacity(key string, value, max int) {
	if value < 1 || value > max {
		l.addError(fmt.Sprintf("%s must be between 1 and %d", key, max))
	}
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
