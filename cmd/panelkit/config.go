package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the panelkit configuration file
// (~/.config/panelkit/config.yaml). Numeric fields are pointers so "not set"
// is distinguishable from zero.
type Config struct {
	BudgetMB   *int64 `yaml:"budget_mb"`
	PanelWidth *int64 `yaml:"panel_width"`
	BaseBlock  *int64 `yaml:"base_block"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "panelkit", "config.yaml")
}

// applyDeviceConfig applies config file defaults to the shared device flags
// when the corresponding CLI flag was not explicitly set.
func applyDeviceConfig(c *cli.Command, cfg Config) {
	if cfg.BudgetMB != nil && !c.IsSet("budget") {
		budgetMB = *cfg.BudgetMB
	}
	if cfg.PanelWidth != nil && !c.IsSet("panel") {
		panelWidth = *cfg.PanelWidth
	}
	if cfg.BaseBlock != nil && !c.IsSet("base") {
		baseBlock = *cfg.BaseBlock
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
