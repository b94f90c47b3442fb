package aibot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "buildsbot/core/config"
)

// AnthropicConfig tunes the remote model access.
type AnthropicConfig struct {
	APIKey       string  `yaml:"api_key" envconfig:"ANTHROPIC_API_KEY"`
	HistoryLimit int     `yaml:"history_limit"`
	MaxTokens    int64   `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// Config aggregates the assistant bot configuration on top of the shared core.
type Config struct {
	Core      coreconfig.Config `yaml:",inline"`
	Anthropic AnthropicConfig   `yaml:"anthropic"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads YAML configuration and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Anthropic.APIKey) == "" {
		return nil, fmt.Errorf("anthropic.api_key is required")
	}
	return &cfg, nil
}
