package config_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/example/bulksms/internal/config"
)

var knownKeys = []string{
	"APP_ENV", "LOG_LEVEL", "SMS_GATEWAY", "GATEWAY_TIMEOUT_SECONDS",
	"BULKSMS_BASE_URL", "BULKSMS_AUTH_TOKEN", "BULKSMS_AUTH_LOGIN", "BULKSMS_SENDER", "BULKSMS_DEFAULT_ROUTING",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER", "TWILIO_MESSAGING_SERVICE_SID",
	"MAX_ATTEMPTS", "BASE_BACKOFF_MS", "MAX_BACKOFF_MS", "DISPATCH_CONCURRENCY", "SMS_MAX_SEGMENTS",
	"SMS_GSM_SINGLE_CAPACITY", "SMS_GSM_CONCAT_CAPACITY", "SMS_UCS2_SINGLE_CAPACITY", "SMS_UCS2_CONCAT_CAPACITY",
	"KAFKA_BROKERS", "KAFKA_SMS_REQUEST_TOPIC", "KAFKA_SMS_STATUS_TOPIC", "KAFKA_SMS_DLQ_TOPIC",
	"SMS_CONSUMER_GROUP", "COMMIT_ON_SUCCESS_ONLY", "MSG_MAX_BYTES", "HEALTH_LISTEN", "HEALTH_CHECK_TIMEOUT_MS",
}

// clearEnv blanks every key the loader reads; blank values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range knownKeys {
		t.Setenv(key, "")
	}
}

func setWorkerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9093")
	t.Setenv("KAFKA_SMS_REQUEST_TOPIC", "sms.request")
	t.Setenv("KAFKA_SMS_STATUS_TOPIC", "sms.status")
	t.Setenv("KAFKA_SMS_DLQ_TOPIC", "sms.dlq")
	t.Setenv("SMS_CONSUMER_GROUP", "sms-consumer")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BULKSMS_AUTH_TOKEN", "17A7C589:9Sj8Ae9W")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gateway.Backend != config.BackendBulkSMS {
		t.Fatalf("expected bulksms backend, got %s", cfg.Gateway.Backend)
	}
	if cfg.Gateway.TimeoutSeconds != 4 {
		t.Fatalf("expected gateway timeout 4, got %d", cfg.Gateway.TimeoutSeconds)
	}
	if cfg.BulkSMS.BaseURL != "https://api.bulksms.com/v1" {
		t.Fatalf("unexpected base url %s", cfg.BulkSMS.BaseURL)
	}
	if cfg.BulkSMS.RoutingGroup != "ECONOMY" {
		t.Fatalf("expected ECONOMY routing, got %s", cfg.BulkSMS.RoutingGroup)
	}
	user, pass, ok := cfg.BulkSMS.Credentials()
	if !ok || user != "17A7C589" || pass != "9Sj8Ae9W" {
		t.Fatalf("unexpected credentials %q:%q", user, pass)
	}
	if cfg.Dispatch.MaxAttempts != 3 || cfg.Dispatch.Concurrency != 8 || cfg.Dispatch.MaxSegments != 0 {
		t.Fatalf("unexpected dispatch defaults %+v", cfg.Dispatch)
	}
	want := config.EncodingConfig{GSMSingle: 160, GSMConcat: 153, UCS2Single: 70, UCS2Concat: 67}
	if cfg.Encoding != want {
		t.Fatalf("encoding = %+v, want %+v", cfg.Encoding, want)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestLoadLoginCredentialsAndRouting(t *testing.T) {
	clearEnv(t)
	t.Setenv("BULKSMS_AUTH_LOGIN", "alice:s3cr:et")
	t.Setenv("BULKSMS_DEFAULT_ROUTING", "premium")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user, pass, _ := cfg.BulkSMS.Credentials()
	if user != "alice" || pass != "s3cr:et" {
		t.Fatalf("unexpected credentials %q:%q", user, pass)
	}
	if cfg.BulkSMS.RoutingGroup != "PREMIUM" {
		t.Fatalf("expected PREMIUM routing, got %s", cfg.BulkSMS.RoutingGroup)
	}
}

func TestLoadBulkSMSRequiresCredentials(t *testing.T) {
	clearEnv(t)

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "BULKSMS_AUTH_TOKEN or BULKSMS_AUTH_LOGIN is required") {
		t.Fatalf("expected missing credential error, got %v", err)
	}
}

func TestLoadRejectsMalformedToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("BULKSMS_AUTH_TOKEN", "no-colon")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "BULKSMS_AUTH_TOKEN") {
		t.Fatalf("expected token format error, got %v", err)
	}
}

func TestLoadRejectsInvalidRouting(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "mock")
	t.Setenv("BULKSMS_DEFAULT_ROUTING", "turbo")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "invalid routing group") {
		t.Fatalf("expected routing error, got %v", err)
	}
}

func TestLoadTwilioRequiresCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "twilio")

	_, err := config.Load()
	if err == nil {
		t.Fatalf("expected error when twilio credentials missing")
	}

	msg := err.Error()
	for _, want := range []string{
		"TWILIO_ACCOUNT_SID is required",
		"TWILIO_AUTH_TOKEN is required",
		"TWILIO_PHONE_NUMBER or TWILIO_MESSAGING_SERVICE_SID is required",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestLoadInvalidGateway(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "carrier-pigeon")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "is not supported") {
		t.Fatalf("expected gateway validation error, got %v", err)
	}
}

func TestLoadWorkerRequiresKafka(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "mock")

	_, err := config.LoadWorker()
	if err == nil || !strings.Contains(err.Error(), "KAFKA_BROKERS is required") {
		t.Fatalf("expected missing brokers error, got %v", err)
	}

	setWorkerEnv(t)
	cfg, err := config.LoadWorker()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantBrokers := []string{"broker-a:9092", "broker-b:9093"}
	if !reflect.DeepEqual(cfg.Kafka.Brokers, wantBrokers) {
		t.Fatalf("expected brokers %v, got %v", wantBrokers, cfg.Kafka.Brokers)
	}
	if !cfg.Kafka.CommitOnSuccessOnly {
		t.Fatalf("expected commit on success only by default")
	}
}

func TestLoadInvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "mock")
	t.Setenv("MAX_ATTEMPTS", "three")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "MAX_ATTEMPTS must be a valid integer") {
		t.Fatalf("expected integer error, got %v", err)
	}
}

func TestLoadRejectsNegativeMaxSegments(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "mock")
	t.Setenv("SMS_MAX_SEGMENTS", "-1")

	_, err := config.Load()
	if err == nil || !strings.Contains(err.Error(), "SMS_MAX_SEGMENTS must be >= 0") {
		t.Fatalf("expected max segments error, got %v", err)
	}
}

func TestLoadRejectsCapacityAboveGatewayLimit(t *testing.T) {
	cases := map[string]string{
		"SMS_GSM_SINGLE_CAPACITY":  "161",
		"SMS_GSM_CONCAT_CAPACITY":  "160",
		"SMS_UCS2_SINGLE_CAPACITY": "0",
		"SMS_UCS2_CONCAT_CAPACITY": "70",
	}
	for key, value := range cases {
		clearEnv(t)
		t.Setenv("SMS_GATEWAY", "mock")
		t.Setenv(key, value)

		_, err := config.Load()
		if err == nil || !strings.Contains(err.Error(), key+" must be between 1 and") {
			t.Fatalf("%s=%s: expected capacity error, got %v", key, value, err)
		}
	}
}

func TestLoadAcceptsSmallerCapacities(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMS_GATEWAY", "mock")
	t.Setenv("SMS_GSM_CONCAT_CAPACITY", "150")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Encoding.GSMConcat != 150 {
		t.Fatalf("expected concat capacity 150, got %d", cfg.Encoding.GSMConcat)
	}
}

func TestNormalizeRoutingGroup(t *testing.T) {
	if g, err := config.NormalizeRoutingGroup(""); err != nil || g != "ECONOMY" {
		t.Fatalf("empty group = (%q, %v)", g, err)
	}
	if g, err := config.NormalizeRoutingGroup(" standard "); err != nil || g != "STANDARD" {
		t.Fatalf("standard = (%q, %v)", g, err)
	}
}
