// Package config loads the reconciler's YAML configuration. Tokens are
// deliberately absent from the file format; they arrive via flags or
// environment so a committed config never carries credentials.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
)

type Config struct {
	BaseURL       string `yaml:"base_url"`
	DataDir       string `yaml:"data_dir"`
	ObserveListen string `yaml:"observe_listen"`
	DisableDB     bool   `yaml:"disable_db"`

	BatchSize int           `yaml:"batch_size"`
	Window    time.Duration `yaml:"window"`
	Pacing    time.Duration `yaml:"pacing"`

	Targets []TargetSpec `yaml:"targets,omitempty"`
}

// TargetSpec names one pattern slot. Tier accepts the same names the
// CLI flags use: defensive1, defensive2, build1, build2, build3.
type TargetSpec struct {
	Tier    string `yaml:"tier"`
	Pattern string `yaml:"pattern"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("ftplace.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("ftplace.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		BaseURL:   "https://ftplace.42lwatch.ch",
		DataDir:   "./data",
		BatchSize: 10,
		Window:    31 * time.Minute,
		Pacing:    time.Second,
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.ObserveListen = strings.TrimSpace(c.ObserveListen)
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Window <= 0 {
		c.Window = 31 * time.Minute
	}
	if c.Pacing <= 0 {
		c.Pacing = time.Second
	}
	for i := range c.Targets {
		c.Targets[i].Tier = strings.ToLower(strings.TrimSpace(c.Targets[i].Tier))
		c.Targets[i].Pattern = strings.TrimSpace(c.Targets[i].Pattern)
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	seen := map[string]bool{}
	for _, ts := range c.Targets {
		if _, err := TierByName(ts.Tier); err != nil {
			return err
		}
		if seen[ts.Tier] {
			return fmt.Errorf("duplicate target tier %q", ts.Tier)
		}
		seen[ts.Tier] = true
		if ts.Pattern == "" {
			return fmt.Errorf("target %q: pattern path must not be empty", ts.Tier)
		}
	}
	return nil
}

// TierByName maps a config or flag tier name to its pattern tier.
func TierByName(name string) (pattern.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "defensive1":
		return pattern.TierDefensivePrimary, nil
	case "defensive2":
		return pattern.TierDefensiveSecondary, nil
	case "build1":
		return pattern.TierBuild1, nil
	case "build2":
		return pattern.TierBuild2, nil
	case "build3":
		return pattern.TierBuild3, nil
	default:
		return 0, fmt.Errorf("unknown target tier %q", name)
	}
}
