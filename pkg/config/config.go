// Package config loads checker settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported browser drivers.
const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// DefaultWait is how long a page is given to run its scripts before the
// resource list is read.
const DefaultWait = 5 * time.Second

// MaxWait caps the configurable wait.
const MaxWait = 2 * time.Minute

// Config holds browser and check settings.
type Config struct {
	Driver    string        `yaml:"driver"`
	ChromeBin string        `yaml:"chrome_bin"`
	Headless  bool          `yaml:"headless"`
	Wait      time.Duration `yaml:"wait"`
	Scheme    string        `yaml:"scheme"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Driver:   DriverRod,
		Headless: true,
		Wait:     DefaultWait,
		Scheme:   "https",
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty) and then with environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Driver = getEnvOrDefault("TRACKERCHECK_DRIVER", c.Driver)
	c.ChromeBin = getEnvOrDefault("CHROME_BIN", c.ChromeBin)

	if v := os.Getenv("TRACKERCHECK_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRACKERCHECK_HEADLESS=%q: %w", v, err)
		}
		c.Headless = b
	}

	if v := os.Getenv("TRACKERCHECK_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRACKERCHECK_WAIT=%q: %w", v, err)
		}
		c.Wait = d
	}
	return nil
}

// Validate checks that the settings can drive a browser.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverRod, DriverChromedp:
	default:
		return fmt.Errorf("unknown driver %q (want %s or %s)", c.Driver, DriverRod, DriverChromedp)
	}
	if c.Wait <= 0 {
		return fmt.Errorf("wait must be positive, got %s", c.Wait)
	}
	if c.Wait > MaxWait {
		return fmt.Errorf("wait too large (%s), must be <=%s", c.Wait, MaxWait)
	}
	if c.Scheme == "" {
		return errors.New("scheme must not be empty")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
