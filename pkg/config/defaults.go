package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyDirectoryDefaults(&cfg.Directory)
	applyRelayDefaults(cfg)
	applyAPIDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyDirectoryDefaults sets directory store defaults.
func applyDirectoryDefaults(cfg *DirectoryConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

// applyRelayDefaults sets websocket relay defaults.
func applyRelayDefaults(cfg *Config) {
	r := &cfg.Adapters.Relay
	if r.Port == 0 {
		r.Port = 8090
	}
	if r.Path == "" {
		r.Path = "/ws"
	}
	if r.MaxMessageBytes == 0 {
		// A push-to-talk frame is a short audio chunk; 1MB leaves
		// generous headroom after base64 framing.
		r.MaxMessageBytes = 1 << 20
	}
	if r.SendBufferSize == 0 {
		r.SendBufferSize = 64
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = 10 * time.Second
	}
	if r.PongTimeout == 0 {
		r.PongTimeout = 60 * time.Second
	}
	if r.PingInterval == 0 {
		// Must be shorter than PongTimeout so healthy peers never
		// miss a deadline.
		r.PingInterval = 30 * time.Second
	}
	if r.ShutdownTimeout == 0 {
		r.ShutdownTimeout = 10 * time.Second
	}
}

// applyAPIDefaults sets HTTP API defaults.
func applyAPIDefaults(cfg *Config) {
	a := &cfg.Adapters.API
	if a.Port == 0 {
		a.Port = 8080
	}
	if a.ReadTimeout == 0 {
		a.ReadTimeout = 15 * time.Second
	}
	if a.WriteTimeout == 0 {
		a.WriteTimeout = 15 * time.Second
	}
	if a.IdleTimeout == 0 {
		a.IdleTimeout = 60 * time.Second
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = 10 * time.Second
	}
	if a.ShutdownTimeout == 0 {
		a.ShutdownTimeout = 10 * time.Second
	}
}
