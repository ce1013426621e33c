package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sgscollector/internal/model"
)

const (
	defaultDaysBack       = 730
	defaultTimeoutSeconds = 30
	defaultRetryAttempts  = 2
	defaultSource         = "Banco Central do Brasil (SGS)"
)

type Settings struct {
	DaysBackDefault int `yaml:"days_back_default"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
	RetryAttempts   int `yaml:"retry_attempts"`
}

type Series struct {
	Name     string `yaml:"name"`
	Code     int    `yaml:"code"`
	Unit     string `yaml:"unit"`
	Category string `yaml:"category"`
	Usage    string `yaml:"usage"`
	Source   string `yaml:"source"`
}

type Config struct {
	Settings Settings `yaml:"settings"`
	Series   []Series `yaml:"series"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.DaysBackDefault <= 0 {
		c.Settings.DaysBackDefault = defaultDaysBack
	}
	if c.Settings.TimeoutSeconds <= 0 {
		c.Settings.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Settings.RetryAttempts <= 0 {
		c.Settings.RetryAttempts = defaultRetryAttempts
	}
	for i := range c.Series {
		if c.Series[i].Source == "" {
			c.Series[i].Source = defaultSource
		}
	}
}

// Validate rejects configs the run could not act on. Duplicate codes are
// an error rather than last-wins: two names competing for one dedup key
// would silently shadow each other in the merged table.
func (c *Config) Validate() error {
	if len(c.Series) == 0 {
		return fmt.Errorf("config: no series configured")
	}

	seen := make(map[int]string, len(c.Series))
	for _, series := range c.Series {
		if series.Name == "" {
			return fmt.Errorf("config: series with code %d has no name", series.Code)
		}
		if series.Code <= 0 {
			return fmt.Errorf("config: series %q has invalid code %d", series.Name, series.Code)
		}
		if previous, ok := seen[series.Code]; ok {
			return fmt.Errorf("config: duplicate series code %d (%q and %q)", series.Code, previous, series.Name)
		}
		seen[series.Code] = series.Name
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.TimeoutSeconds) * time.Second
}

func (c *Config) SeriesSpecs() []model.SeriesSpec {
	specs := make([]model.SeriesSpec, 0, len(c.Series))
	for _, series := range c.Series {
		specs = append(specs, model.SeriesSpec{
			Name:     series.Name,
			Code:     series.Code,
			Unit:     series.Unit,
			Category: series.Category,
			Usage:    series.Usage,
			Source:   series.Source,
		})
	}
	return specs
}
