// Package config loads and validates the topology service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config is the full topology service configuration.
type Config struct {
	// Locality is the announced location of this node, e.g. "us-east-1a".
	Locality string `yaml:"locality" validate:"required"`

	// Roles names the announced node roles, e.g. ["producer", "api"].
	Roles []string `yaml:"roles" validate:"omitempty,dive,oneof=producer backup api full gateway special"`

	// Version is the announced software version string.
	Version string `yaml:"version"`

	// LocalProducers lists producer identities hosted on this node.
	LocalProducers []string `yaml:"local_producers"`

	// SampleIntervalSec is the link-sampling period in seconds.
	SampleIntervalSec int `yaml:"sample_interval_sec" validate:"required,min=1"`

	// MaxHops bounds how far a broadcast topology message travels.
	MaxHops uint16 `yaml:"max_hops" validate:"min=1"`

	// MaxProduced is the number of consecutive blocks one producer is
	// scheduled to produce before handing off.
	MaxProduced uint16 `yaml:"max_produced" validate:"min=1"`

	Gossip GossipConfig `yaml:"gossip"`
	HTTP   HTTPConfig   `yaml:"http"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// GossipConfig holds the pub/sub socket addresses.
type GossipConfig struct {
	// PublishAddr is the address the local publisher binds.
	PublishAddr string `yaml:"publish_addr" validate:"required"`

	// Peers lists the publisher addresses of peers to subscribe to.
	Peers []PeerConfig `yaml:"peers" validate:"omitempty,dive"`

	// RecvTimeoutSec is the subscriber receive deadline in seconds.
	RecvTimeoutSec int `yaml:"recv_timeout_sec" validate:"min=0"`
}

// PeerConfig describes one gossip peer.
type PeerConfig struct {
	// Addr is the peer publisher's dial address.
	Addr string `yaml:"addr" validate:"required"`

	// Locality, Roles and Version mirror the peer's announced descriptor so
	// the link to it can be registered before the first map update arrives.
	Locality string   `yaml:"locality" validate:"required"`
	Roles    []string `yaml:"roles"`
	Version  string   `yaml:"version"`
}

// HTTPConfig holds the report/metrics HTTP listener settings.
type HTTPConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"required"`
}

// Default returns the configuration used when no file is given. Locality is
// deliberately left empty: it has no sensible default and validation rejects
// it, so a bare default config fails loudly instead of announcing a nameless
// node.
func Default() *Config {
	return &Config{
		Version:           "dev",
		SampleIntervalSec: 5,
		MaxHops:           6,
		MaxProduced:       12,
		Gossip: GossipConfig{
			PublishAddr:    "tcp://*:9700",
			RecvTimeoutSec: 1,
		},
		HTTP: HTTPConfig{
			ListenAddr: ":9701",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, fills defaults for omitted fields and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// SampleInterval returns the sampling period as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSec) * time.Second
}

// RecvTimeout returns the subscriber receive deadline as a duration.
func (c *GossipConfig) RecvTimeout() time.Duration {
	if c.RecvTimeoutSec <= 0 {
		return time.Second
	}
	return time.Duration(c.RecvTimeoutSec) * time.Second
}

// formatValidationError converts validator errors to user-friendly messages,
// field first.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}
	return err
}
