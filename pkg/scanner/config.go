package scanner

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrInvalidTimeout = errors.New("invalid unavailable timeout")
)

// DefaultUnavailableTimeout is how long an address may go unseen before
// unavailability handlers fire.
const DefaultUnavailableTimeout = 300 * time.Second

// MinUnavailableTimeout is the smallest accepted timeout. Advertisement
// intervals of several seconds are common, so anything shorter produces
// constant availability flapping.
const MinUnavailableTimeout = 5 * time.Second

// Duration wraps time.Duration with YAML support for strings like "300s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config configures a Dispatcher and its unavailability Tracker.
type Config struct {
	// UnavailableTimeout is how long an address may go unseen before
	// unavailability handlers fire. Zero means DefaultUnavailableTimeout.
	UnavailableTimeout Duration `yaml:"unavailable_timeout"`

	// CaptureAdvertisements enables per-advertisement event capture.
	// Off by default: busy environments see hundreds of packets per second.
	CaptureAdvertisements bool `yaml:"capture_advertisements"`
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{
		UnavailableTimeout: Duration(DefaultUnavailableTimeout),
	}
}

// Validate checks the configuration, applying defaults for zero values.
func (c *Config) Validate() error {
	if c.UnavailableTimeout == 0 {
		c.UnavailableTimeout = Duration(DefaultUnavailableTimeout)
	}
	if time.Duration(c.UnavailableTimeout) < MinUnavailableTimeout {
		return fmt.Errorf("%w: %s is below the %s minimum",
			ErrInvalidTimeout, time.Duration(c.UnavailableTimeout), MinUnavailableTimeout)
	}
	return nil
}

// LoadConfig reads a Config from a YAML file and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
