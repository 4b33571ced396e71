// Package config loads the runtime-wide options spec.md §6 recognizes,
// the same way the teacher's server config does: environment variables
// (with an optional .env file for local development), validated once at
// startup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Configuration holds the options a DomainParticipantFactory accepts, per
// spec.md §6's "recognized options" plus the ambient transport/metrics
// knobs every deployment needs.
type Configuration struct {
	// DomainTag name-spaces discovery beyond the numeric domain id
	// (spec.md §6).
	DomainTag string `env:"GODDS_DOMAIN_TAG" envDefault:""`

	// FragmentSize is data_max_size_serialized: the largest a CacheChange
	// payload may be before it's split into DATAFRAG submessages.
	FragmentSize int `env:"GODDS_FRAGMENT_SIZE" envDefault:"1344"`

	// UDPReceiveBufferSize sets SO_RCVBUF on metatraffic/user sockets when
	// non-zero; zero means "leave the OS default".
	UDPReceiveBufferSize int `env:"GODDS_UDP_RECEIVE_BUFFER_SIZE" envDefault:"0"`

	// InterfaceName binds transport sockets to a single network interface;
	// empty means "all non-loopback interfaces" (spec.md §9 open question).
	InterfaceName string `env:"GODDS_INTERFACE_NAME" envDefault:""`

	// ParticipantAnnouncementInterval is the SPDP announcement cadence.
	ParticipantAnnouncementInterval time.Duration `env:"GODDS_SPDP_INTERVAL" envDefault:"5s"`

	// MaxMessageSize bounds outbound UDP datagrams (spec.md §4.9).
	MaxMessageSize int `env:"GODDS_MAX_MESSAGE_SIZE" envDefault:"65507"`

	// HeartbeatPeriod is the reliable stateful writer's periodic heartbeat
	// cadence (spec.md §4.3).
	HeartbeatPeriod time.Duration `env:"GODDS_HEARTBEAT_PERIOD" envDefault:"1s"`

	// NackResponseDelay bounds how long a reliable reader waits before
	// sending an AckNack after a heartbeat, to avoid an ack-storm when many
	// readers share a multicast heartbeat.
	NackResponseDelay time.Duration `env:"GODDS_NACK_RESPONSE_DELAY" envDefault:"200ms"`

	// MetricsAddr, if non-empty, serves Prometheus metrics on this address.
	MetricsAddr string `env:"GODDS_METRICS_ADDR" envDefault:""`

	// LogLevel/LogFormat configure internal/logging, same names and values
	// as the teacher's config.go.
	LogLevel  string `env:"GODDS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GODDS_LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from an optional .env file and the process
// environment, in that priority order (env vars win), then validates it.
func Load(logger *zerolog.Logger) (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Debug().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for self-consistency.
func (c *Configuration) Validate() error {
	if c.FragmentSize <= 0 {
		return fmt.Errorf("GODDS_FRAGMENT_SIZE must be > 0, got %d", c.FragmentSize)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("GODDS_MAX_MESSAGE_SIZE must be > 0, got %d", c.MaxMessageSize)
	}
	if c.FragmentSize > c.MaxMessageSize {
		return fmt.Errorf("GODDS_FRAGMENT_SIZE (%d) must be <= GODDS_MAX_MESSAGE_SIZE (%d)", c.FragmentSize, c.MaxMessageSize)
	}
	if c.ParticipantAnnouncementInterval <= 0 {
		return fmt.Errorf("GODDS_SPDP_INTERVAL must be > 0, got %s", c.ParticipantAnnouncementInterval)
	}
	if c.HeartbeatPeriod <= 0 {
		return fmt.Errorf("GODDS_HEARTBEAT_PERIOD must be > 0, got %s", c.HeartbeatPeriod)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("GODDS_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("GODDS_LOG_FORMAT must be one of json, console (got %q)", c.LogFormat)
	}
	return nil
}

// Default returns a Configuration populated with defaults, for callers
// (tests, embedders) that don't want environment-driven configuration.
func Default() *Configuration {
	cfg := &Configuration{}
	_ = env.Parse(cfg) // only applies envDefault tags; no env vars set
	return cfg
}
