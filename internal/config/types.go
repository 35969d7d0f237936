package config

import "time"

// Config represents the complete Coastle configuration
type Config struct {
	Service ServiceConfig
	Alerts  AlertConfig
}

// ServiceConfig is loaded from coastle.yaml
type ServiceConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Storage    StorageConfig      `yaml:"storage"`
	Thresholds map[string]float64 `yaml:"thresholds,omitempty"`
	Optimizer  OptimizerConfig    `yaml:"optimizer"`
	Query      QueryConfig        `yaml:"query"`
	Stations   []StationConfig    `yaml:"stations,omitempty"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Port           string `yaml:"port"`
	GRPCHealthPort string `yaml:"grpc_health_port,omitempty"`
}

// StorageConfig selects the alert store backend
type StorageConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "postgres"
	DSNEnv   string `yaml:"dsn_env,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty"`
	MaxIdle  int    `yaml:"max_idle,omitempty"`
}

// OptimizerConfig selects where tuned thresholds come from
type OptimizerConfig struct {
	Type           string        `yaml:"type"` // "static", "http" or "none"
	URLEnv         string        `yaml:"url_env,omitempty"`
	Timeout        time.Duration `yaml:"timeout"`
	RefreshOnStart *bool         `yaml:"refresh_on_start,omitempty"`
}

// QueryConfig controls the active-alert window
type QueryConfig struct {
	ActiveWindow time.Duration `yaml:"active_window"`
}

// StationConfig seeds the station registry
type StationConfig struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Type string  `yaml:"type"` // "tide", "weather" or "pollution"
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

// AlertConfig is loaded from alerts.yaml
type AlertConfig struct {
	Channels      map[string]ChannelConfig `yaml:"channels"`
	AlertRules    map[string]AlertRule     `yaml:"alert_rules"`
	AlertBehavior AlertBehavior            `yaml:"alert_behavior"`
}

// ChannelConfig defines a notification channel
type ChannelConfig struct {
	Type string `yaml:"type"` // "log", "apprise", "kafka" or "redis"

	// apprise
	URLEnv  string `yaml:"url_env,omitempty"`
	Service string `yaml:"service,omitempty"`

	// kafka
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`

	// redis
	Addr        string `yaml:"addr,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	DB          int    `yaml:"db,omitempty"`
	Stream      string `yaml:"stream,omitempty"`
	MaxLen      int64  `yaml:"max_len,omitempty"`
}

// AlertRule defines routing rules for alerts
type AlertRule struct {
	Channels []string `yaml:"channels"`
}

// AlertBehavior defines alert behavior settings
type AlertBehavior struct {
	SendTimeout    time.Duration             `yaml:"send_timeout"`
	Escalation     map[string]EscalationRule `yaml:"escalation,omitempty"`
	RepeatedBreach RepeatedBreach            `yaml:"repeated_breach,omitempty"`
}

// EscalationRule re-sends unacknowledged alerts of one severity
type EscalationRule struct {
	Channels []string      `yaml:"channels"`
	Delay    time.Duration `yaml:"delay"`
}

// RepeatedBreach configures the repeated-breach warning
type RepeatedBreach struct {
	Threshold int           `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
}
