package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom
// rules.
//
// Note: log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	relay := cfg.Adapters.Relay
	api := cfg.Adapters.API

	if relay.Port == api.Port {
		return fmt.Errorf("adapters: relay and api cannot share port %d", relay.Port)
	}

	if relay.PingInterval >= relay.PongTimeout {
		return fmt.Errorf("adapters.relay: ping_interval (%v) must be shorter than pong_timeout (%v)",
			relay.PingInterval, relay.PongTimeout)
	}

	if cfg.Directory.Type == "badger" {
		if _, ok := cfg.Directory.Badger["db_path"]; !ok {
			return fmt.Errorf("directory.badger: db_path is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
