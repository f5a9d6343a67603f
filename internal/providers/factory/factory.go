package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/bulksms/internal/config"
	smsprovider "github.com/example/bulksms/internal/providers/sms"
)

// SMS constructs the configured gateway transport. Supports BulkSMS, Twilio
// and mock backends.
func SMS(cfg *config.Config, logger zerolog.Logger) (smsprovider.Transport, error) {
	backend := normalize(cfg.Gateway.Backend, config.BackendBulkSMS)
	switch backend {
	case config.BackendBulkSMS:
		var opts []smsprovider.BulkSMSOption
		if cfg.Gateway.TimeoutSeconds > 0 {
			opts = append(opts, smsprovider.WithBulkSMSTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second))
		}
		provider, err := smsprovider.NewBulkSMSProvider(cfg.BulkSMS, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("factory: bulksms provider init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Str("routing_group", provider.RoutingGroup(false)).
			Msg("sms provider initialised")
		return provider, nil
	case config.BackendTwilio:
		provider, err := smsprovider.NewTwilioProvider(cfg.Twilio, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: twilio sms provider init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Msg("sms provider initialised")
		return provider, nil
	case config.BackendMock:
		provider := smsprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", backend).
			Msg("sms provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported sms provider backend %q", cfg.Gateway.Backend)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
