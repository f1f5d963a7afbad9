package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Categories []Category `yaml:"categories"`
	Collector  Collector  `yaml:"collector"`
	Filter     Filter     `yaml:"filter"`
	Novelty    Novelty    `yaml:"novelty"`
	Cache      Cache      `yaml:"cache"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

// Category groups sources under a keyword profile. Articles from a
// category's sources are admitted only when they score above the
// admission threshold against its keyword list (or unconditionally
// when the list is empty).
type Category struct {
	Name            string   `yaml:"name"`
	Keywords        []string `yaml:"keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
	Sources         []Source `yaml:"sources"`
}

// Source describes one syndication endpoint.
type Source struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Kind           string   `yaml:"kind"` // rss | community | api
	MaxArticles    int      `yaml:"max_articles"`
	FilterKeywords []string `yaml:"filter_keywords"`
}

type Collector struct {
	MaxWorkers       int     `yaml:"max_workers"`
	FetchTimeoutSecs int     `yaml:"fetch_timeout_seconds"`
	RunTimeoutSecs   int     `yaml:"run_timeout_seconds"`
	MaxAttempts      int     `yaml:"max_attempts"`
	BackoffSecs      float64 `yaml:"backoff_seconds"`
	PerSourceLimit   int     `yaml:"per_source_limit"`
	PerCategoryLimit int     `yaml:"per_category_limit"`
	MaxAgeHours      int     `yaml:"max_age_hours"`
	EnrichContent    bool    `yaml:"enrich_content"`
	EnrichTop        int     `yaml:"enrich_top"`
}

// Filter overrides the built-in rule-cascade keyword lists. Empty
// fields keep the defaults from the score package.
type Filter struct {
	Allow            []string `yaml:"allow"`
	Block            []string `yaml:"block"`
	Boilerplate      []string `yaml:"boilerplate"`
	Political        []string `yaml:"political"`
	BusinessOverride []string `yaml:"business_override"`
	Regional         []string `yaml:"regional"`
	RegionalAllow    []string `yaml:"regional_allow"`
}

type Novelty struct {
	BoostKeywords     []string `yaml:"boost_keywords"`
	MainstreamSources []string `yaml:"mainstream_sources"`
}

type Cache struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for dailybrief.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "dailybrief")
}

// DataDir returns the XDG data directory for dailybrief.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "dailybrief")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/dailybrief/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'dailybrief init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and
// rejecting malformed catalog entries at the boundary.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Collector: Collector{
			MaxWorkers:       10,
			FetchTimeoutSecs: 10,
			RunTimeoutSecs:   60,
			MaxAttempts:      3,
			BackoffSecs:      1,
			PerSourceLimit:   10,
			PerCategoryLimit: 10,
			MaxAgeHours:      48,
			EnrichTop:        3,
		},
		Cache:   Cache{Enabled: true, TTLHours: 1},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Categories {
		cat := &cfg.Categories[i]
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		for j := range cat.Sources {
			src := &cat.Sources[j]
			if src.URL == "" {
				return nil, fmt.Errorf("source %d in category %q has no url", j, cat.Name)
			}
			if src.Name == "" {
				src.Name = src.URL
			}
			if src.Kind == "" {
				src.Kind = "rss"
			}
			if src.MaxArticles <= 0 {
				src.MaxArticles = cfg.Collector.PerSourceLimit
			}
		}
	}

	return cfg, nil
}

// SourceCount returns the number of configured sources across all
// categories.
func (c *Config) SourceCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Sources)
	}
	return n
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c *Collector) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// RunTimeout returns the overall run deadline as a duration.
func (c *Collector) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSecs) * time.Second
}

// Backoff returns the retry backoff base as a duration.
func (c *Collector) Backoff() time.Duration {
	return time.Duration(c.BackoffSecs * float64(time.Second))
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
