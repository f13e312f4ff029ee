package domwatch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Stealth levels for acquiring a page.
const (
	StealthHTTP    = "http"    // plain GET, no watching
	StealthBrowser = "browser" // Rod + stealth tab with mutation stream
	StealthAuto    = "auto"    // HTTP when it already yields a titled signal
)

// Config is the top-level watcher configuration.
type Config struct {
	Poll         PollConfig     `yaml:"poll"`
	Debounce     DebounceConfig `yaml:"debounce"`
	Browser      BrowserConfig  `yaml:"browser"`
	StealthLevel string         `yaml:"stealth_level"` // http | browser | auto
	Extract      ExtractConfig  `yaml:"extract"`
	Sinks        []SinkConfig   `yaml:"sinks"`
}

// PollConfig controls the initial search for a titled signal.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	// Retries after the first attempt. 0 means the default (10); negative disables retries.
	Retries int `yaml:"retries"`
}

// DebounceConfig controls mutation-driven re-extraction.
type DebounceConfig struct {
	Quiet time.Duration `yaml:"quiet"`
}

// BrowserConfig controls Chrome.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Headful          bool     `yaml:"headful"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// ExtractConfig overrides the extractor's selector lists.
type ExtractConfig struct {
	TitleSelectors []string `yaml:"title_selectors"`
	Containers     []string `yaml:"containers"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // store | stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

func (c *Config) defaults() {
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 300 * time.Millisecond
	}
	if c.Poll.Retries == 0 {
		c.Poll.Retries = 10
	}
	if c.Debounce.Quiet <= 0 {
		c.Debounce.Quiet = 500 * time.Millisecond
	}
	if c.StealthLevel == "" {
		c.StealthLevel = StealthAuto
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("domwatch: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("domwatch: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and rejects unknown stealth levels. Use it on
// a Config embedded in a larger file.
func (c *Config) Validate() error {
	c.defaults()
	switch c.StealthLevel {
	case StealthHTTP, StealthBrowser, StealthAuto:
		return nil
	}
	return fmt.Errorf("domwatch: unknown stealth_level %q", c.StealthLevel)
}
