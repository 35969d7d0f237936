package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coastle/coastle/internal/types"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the directory holding path
func LoadConfig(path string) (*Config, error) {
	return LoadConfigDir(filepath.Dir(path))
}

// LoadConfigDir loads all configuration files from a directory
func LoadConfigDir(dir string) (*Config, error) {
	cfg := &Config{}

	// Load coastle.yaml
	if err := loadYAML(filepath.Join(dir, "coastle.yaml"), &cfg.Service); err != nil {
		return nil, fmt.Errorf("loading coastle.yaml: %w", err)
	}

	// Load alerts.yaml (optional)
	alertsPath := filepath.Join(dir, "alerts.yaml")
	if _, err := os.Stat(alertsPath); err == nil {
		if err := loadYAML(alertsPath, &cfg.Alerts); err != nil {
			return nil, fmt.Errorf("loading alerts.yaml: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// ApplyDefaults fills unset fields
func ApplyDefaults(cfg *Config) {
	if cfg.Service.Server.Port == "" {
		cfg.Service.Server.Port = "8088"
	}
	if cfg.Service.Storage.Backend == "" {
		cfg.Service.Storage.Backend = "memory"
	}
	if cfg.Service.Storage.Backend == "postgres" && cfg.Service.Storage.DSNEnv == "" {
		cfg.Service.Storage.DSNEnv = "DATABASE_URL"
	}
	if cfg.Service.Optimizer.Type == "" {
		cfg.Service.Optimizer.Type = "static"
	}
	if cfg.Service.Optimizer.Timeout == 0 {
		cfg.Service.Optimizer.Timeout = 5 * time.Second
	}
	if cfg.Service.Optimizer.RefreshOnStart == nil {
		refresh := true
		cfg.Service.Optimizer.RefreshOnStart = &refresh
	}
	if cfg.Service.Query.ActiveWindow == 0 {
		cfg.Service.Query.ActiveWindow = 24 * time.Hour
	}
	if cfg.Alerts.AlertBehavior.SendTimeout == 0 {
		cfg.Alerts.AlertBehavior.SendTimeout = 10 * time.Second
	}
	if len(cfg.Alerts.Channels) == 0 {
		cfg.Alerts.Channels = map[string]ChannelConfig{"log": {Type: "log"}}
	}
}

// ThresholdOverrides returns the configured threshold overrides
func (c *Config) ThresholdOverrides() (types.ThresholdSet, error) {
	return types.ThresholdSetFromMap(c.Service.Thresholds)
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	switch cfg.Service.Storage.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("storage.backend must be 'memory' or 'postgres'")
	}

	if _, err := cfg.ThresholdOverrides(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	switch cfg.Service.Optimizer.Type {
	case "static", "none":
	case "http":
		if cfg.Service.Optimizer.URLEnv == "" {
			return fmt.Errorf("optimizer: url_env is required for http optimizer")
		}
	default:
		return fmt.Errorf("optimizer.type must be 'static', 'http' or 'none'")
	}

	if cfg.Service.Query.ActiveWindow < 0 {
		return fmt.Errorf("query.active_window must not be negative")
	}

	seen := make(map[string]struct{}, len(cfg.Service.Stations))
	for i, st := range cfg.Service.Stations {
		if st.Name == "" {
			return fmt.Errorf("station %d: name is required", i)
		}
		if !types.StationKind(st.Type).Valid() {
			return fmt.Errorf("station %s: type must be 'tide', 'weather' or 'pollution'", st.Name)
		}
		if st.ID != "" {
			if _, dup := seen[st.ID]; dup {
				return fmt.Errorf("station %s: duplicate id %s", st.Name, st.ID)
			}
			seen[st.ID] = struct{}{}
		}
	}

	// Validate alert channels
	for name, channel := range cfg.Alerts.Channels {
		switch channel.Type {
		case "log":
		case "apprise":
			if channel.URLEnv == "" {
				return fmt.Errorf("channel %s: url_env is required", name)
			}
			if channel.Service == "" {
				return fmt.Errorf("channel %s: service is required", name)
			}
		case "kafka":
			if len(channel.Brokers) == 0 || channel.Topic == "" {
				return fmt.Errorf("channel %s: brokers and topic are required", name)
			}
		case "redis":
			if channel.Addr == "" || channel.Stream == "" {
				return fmt.Errorf("channel %s: addr and stream are required", name)
			}
		default:
			return fmt.Errorf("channel %s: unsupported type %q", name, channel.Type)
		}
	}

	// Validate alert rules reference valid channels
	for ruleName, rule := range cfg.Alerts.AlertRules {
		if ruleName != "default" && !types.Severity(ruleName).Valid() {
			return fmt.Errorf("alert rule %s: must be a severity or 'default'", ruleName)
		}
		if err := checkChannels(cfg, rule.Channels); err != nil {
			return fmt.Errorf("alert rule %s: %w", ruleName, err)
		}
	}

	for severity, rule := range cfg.Alerts.AlertBehavior.Escalation {
		if !types.Severity(severity).Valid() {
			return fmt.Errorf("escalation %s: unknown severity", severity)
		}
		if rule.Delay <= 0 {
			return fmt.Errorf("escalation %s: delay must be > 0", severity)
		}
		if err := checkChannels(cfg, rule.Channels); err != nil {
			return fmt.Errorf("escalation %s: %w", severity, err)
		}
	}

	rb := cfg.Alerts.AlertBehavior.RepeatedBreach
	if rb.Threshold < 0 || rb.Window < 0 {
		return fmt.Errorf("repeated_breach: threshold and window must not be negative")
	}

	return nil
}

func checkChannels(cfg *Config, names []string) error {
	for _, chName := range names {
		if _, ok := cfg.Alerts.Channels[chName]; !ok {
			return fmt.Errorf("references unknown channel %s", chName)
		}
	}
	return nil
}
