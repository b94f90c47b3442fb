package buildsbot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "buildsbot/core/config"
)

// StaffConfig points at the staff group chat that gates delegated admins.
type StaffConfig struct {
	ChatID int64 `yaml:"chat_id" envconfig:"STAFF_CHAT_ID"`
}

// StoreConfig locates the JSON document directory.
type StoreConfig struct {
	Dir string `yaml:"dir" envconfig:"STORE_DIR"`
}

// Config aggregates the catalog bot configuration on top of the shared core.
type Config struct {
	Core  coreconfig.Config `yaml:",inline"`
	Staff StaffConfig       `yaml:"staff"`
	Store StoreConfig       `yaml:"store"`
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
	if cfg.Core.Telegram.AdminID == 0 {
		return nil, fmt.Errorf("telegram.admin_id is required")
	}
	if cfg.Staff.ChatID == 0 {
		return nil, fmt.Errorf("staff.chat_id is required")
	}
	if strings.TrimSpace(cfg.Store.Dir) == "" {
		cfg.Store.Dir = "data"
	}
	return &cfg, nil
}
