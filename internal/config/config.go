package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface, loaded from a YAML file with
// FACEGATE_* environment overrides.  Unknown or invalid values fall back to
// defaults rather than failing; only an unreadable explicit config file is
// an error.
type Config struct {
	Security  Security  `mapstructure:"security"`
	Risk      Risk      `mapstructure:"risk"`
	Source    Source    `mapstructure:"source"`
	Database  Database  `mapstructure:"database"`
	Retention Retention `mapstructure:"retention"`
	Alerts    Alerts    `mapstructure:"alerts"`
	Metrics   Metrics   `mapstructure:"metrics"`
}

type Security struct {
	Threshold             float64 `mapstructure:"threshold"`
	EnforceTimeRules      bool    `mapstructure:"enforce_time_rules"`
	TwoFactorRequired     bool    `mapstructure:"two_factor_required"`
	UnlockDurationSeconds int     `mapstructure:"unlock_duration_seconds"`
}

func (s Security) UnlockDuration() time.Duration {
	return time.Duration(s.UnlockDurationSeconds) * time.Second
}

type Risk struct {
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`
}

type Source struct {
	PollIntervalMs   int `mapstructure:"poll_interval_ms"`
	FailureThreshold int `mapstructure:"failure_threshold"`
}

func (s Source) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

type Database struct {
	Path string `mapstructure:"path"`
	Env  string `mapstructure:"env"` // "dev" | "prod"
}

type Retention struct {
	Days          int `mapstructure:"days"` // 0 = keep forever
	IntervalHours int `mapstructure:"interval_hours"`
}

type Alerts struct {
	Email EmailAlerts `mapstructure:"email"`
	AMQP  AMQPAlerts  `mapstructure:"amqp"`
}

type EmailAlerts struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPAddr   string   `mapstructure:"smtp_addr"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

type AMQPAlerts struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"` // "" disables the metrics listener
}

// Load reads configuration.  path "" means the optional default
// ./config.yaml; a missing default file just yields defaults, while an
// explicit path that cannot be read is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/facegate")
	}

	v.SetEnvPrefix("FACEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("security.threshold", 0.6)
	v.SetDefault("security.enforce_time_rules", true)
	v.SetDefault("security.two_factor_required", false)
	v.SetDefault("security.unlock_duration_seconds", 5)

	v.SetDefault("risk.anomaly_threshold", 0.7)

	v.SetDefault("source.poll_interval_ms", 100)
	v.SetDefault("source.failure_threshold", 5)

	v.SetDefault("database.path", "./data/facegate.db")
	v.SetDefault("database.env", "dev")

	v.SetDefault("retention.days", 30)
	v.SetDefault("retention.interval_hours", 6)

	v.SetDefault("metrics.addr", "")
}

// normalize applies fail-soft corrections for out-of-range values.
func (c *Config) normalize() {
	if c.Security.Threshold < 0 || c.Security.Threshold > 1 {
		c.Security.Threshold = 0.6
	}
	if c.Security.UnlockDurationSeconds < 0 {
		c.Security.UnlockDurationSeconds = 5
	}
	if c.Risk.AnomalyThreshold <= 0 || c.Risk.AnomalyThreshold > 1 {
		c.Risk.AnomalyThreshold = 0.7
	}
	if c.Source.PollIntervalMs <= 0 {
		c.Source.PollIntervalMs = 100
	}
	if c.Source.FailureThreshold <= 0 {
		c.Source.FailureThreshold = 5
	}
	if c.Retention.Days < 0 {
		c.Retention.Days = 30
	}
	if c.Retention.IntervalHours <= 0 {
		c.Retention.IntervalHours = 6
	}

	env := strings.ToLower(strings.TrimSpace(c.Database.Env))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}
	c.Database.Env = env
}
