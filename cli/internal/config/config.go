package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/slurmusage/internal/pricing"
)

const (
	DefaultSacctPath        = "sacct"
	DefaultTimeout          = 2 * time.Minute
	DefaultParallel         = 4
	DefaultQueriesPerSecond = 5.0

	fileName = ".slurmusage.yaml"
)

// Config holds the CLI configuration
type Config struct {
	SacctPath        string        `yaml:"sacct_path,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	Parallel         int           `yaml:"parallel,omitempty"`
	QueriesPerSecond float64       `yaml:"queries_per_second,omitempty"`
	Users            []string      `yaml:"users,omitempty"`
	Rates            pricing.Rates `yaml:"rates,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		SacctPath:        DefaultSacctPath,
		Timeout:          DefaultTimeout,
		Parallel:         DefaultParallel,
		QueriesPerSecond: DefaultQueriesPerSecond,
		Rates:            pricing.DefaultRates(),
	}
}

// DefaultPath returns the path to the config file in the home directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// Load loads the configuration from path, or from the default location when
// path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return &cfg, nil
}

// Save saves the configuration to path, or to the default location when
// path is empty
func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks a complete configuration. Zero values are rejected
// because a saved zero would be read back as the default.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Parallel <= 0 {
		return errors.Errorf("parallel must be positive, got %d", c.Parallel)
	}
	if c.QueriesPerSecond <= 0 {
		return errors.Errorf("queries_per_second must be positive, got %g", c.QueriesPerSecond)
	}
	return c.Rates.Validate()
}

func (c *Config) applyDefaults() {
	if c.SacctPath == "" {
		c.SacctPath = DefaultSacctPath
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Parallel == 0 {
		c.Parallel = DefaultParallel
	}
	if c.QueriesPerSecond == 0 {
		c.QueriesPerSecond = DefaultQueriesPerSecond
	}
	c.Rates = c.Rates.WithDefaults()
}
