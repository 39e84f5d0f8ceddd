// Package config reads splitwatch settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Driver       string   `env:"SPLITWATCH_DRIVER" envDefault:"hl2"`
	ProcessNames []string `env:"SPLITWATCH_PROCESS" envSeparator:","`

	PollInterval   time.Duration `env:"SPLITWATCH_POLL_INTERVAL" envDefault:"15ms"`
	AttachInterval time.Duration `env:"SPLITWATCH_ATTACH_INTERVAL" envDefault:"1s"`
	RemoteTimeout  time.Duration `env:"SPLITWATCH_REMOTE_TIMEOUT" envDefault:"2s"`

	EventBuffer int `env:"SPLITWATCH_EVENT_BUFFER" envDefault:"256"`
	MaxBacklog  int `env:"SPLITWATCH_MAX_BACKLOG" envDefault:"65536"`

	// empty disables the feature
	JournalPath string `env:"SPLITWATCH_JOURNAL_PATH"`
	HTTPAddr    string `env:"SPLITWATCH_HTTP_ADDR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the splitwatch settings
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Driver == "":
		return fmt.Errorf("%w: driver is required", ErrInvalid)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrInvalid, c.PollInterval)
	case c.AttachInterval < c.PollInterval:
		return fmt.Errorf("%w: attach interval %s is shorter than the poll interval %s", ErrInvalid, c.AttachInterval, c.PollInterval)
	case c.RemoteTimeout <= 0:
		return fmt.Errorf("%w: remote timeout must be positive", ErrInvalid)
	case c.EventBuffer < 0:
		return fmt.Errorf("%w: event buffer cannot be negative", ErrInvalid)
	case c.MaxBacklog <= 0:
		return fmt.Errorf("%w: max backlog must be positive", ErrInvalid)
	}
	return nil
}
