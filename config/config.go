package config

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"github.com/jxo-me/ddnsd/consts"
	"gopkg.in/yaml.v3"
)

const ConfigFilePathENV = "DDNS_CONFIG_FILE_PATH"

// Root is the base options to configure the service
type Root struct {
	Log     *LogConfig     `mapstructure:"log" yaml:"log,omitempty" json:"log,omitempty"`
	Metrics *MetricsConfig `mapstructure:"metrics" yaml:"metrics,omitempty" json:"metrics,omitempty"`
	SMTP    *SMTPConfig    `mapstructure:"smtp" yaml:"smtp,omitempty" json:"smtp,omitempty"`
	Retry   RetryConfig    `mapstructure:"retry" yaml:"retry" json:"retry"`
	// Timeout bounds one reconciliation cycle of a target.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Targets []Target      `mapstructure:"targets" yaml:"targets" json:"targets"`
}

type LogConfig struct {
	Output   string             `mapstructure:"output" yaml:"output,omitempty" json:"output,omitempty"`
	Level    string             `mapstructure:"level" yaml:"level,omitempty" json:"level,omitempty"`
	Format   string             `mapstructure:"format" yaml:"format,omitempty" json:"format,omitempty"`
	Rotation *LogRotationConfig `mapstructure:"rotation" yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

type LogRotationConfig struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `mapstructure:"max_size" yaml:"max_size,omitempty" json:"max_size,omitempty"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `mapstructure:"max_age" yaml:"max_age,omitempty" json:"max_age,omitempty"`
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	LocalTime  bool `mapstructure:"local_time" yaml:"local_time,omitempty" json:"local_time,omitempty"`
	Compress   bool `mapstructure:"compress" yaml:"compress,omitempty" json:"compress,omitempty"`
}

type MetricsConfig struct {
	// Listen is the address of the metrics server, e.g. ":9100".
	Listen string `mapstructure:"listen" yaml:"listen" json:"listen"`
	Path   string `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
}

// SMTPConfig is the mail transport used by email notifications.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	Username string `mapstructure:"username" yaml:"username,omitempty" json:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`
	From     string `mapstructure:"from" yaml:"from" json:"from"`
}

// RetryConfig is the backoff policy for provider calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay" json:"max_delay"`
}

func (r RetryConfig) withDefaults(def RetryConfig) RetryConfig {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.MaxAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = def.BaseDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = def.MaxDelay
	}
	if r.MaxDelay < r.BaseDelay {
		r.MaxDelay = r.BaseDelay
	}
	return r
}

// Normalize fills every unset option with its default, so that targets are
// fully resolved before they reach the scheduler.
func (c *Root) Normalize() {
	c.Retry = c.Retry.withDefaults(RetryConfig{
		MaxAttempts: consts.DefaultMaxAttempts,
		BaseDelay:   consts.DefaultBaseDelay,
		MaxDelay:    consts.DefaultMaxDelay,
	})
	if c.Timeout <= 0 {
		c.Timeout = consts.DefaultCycleTimeout
	}
	if c.Metrics != nil && c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	for i := range c.Targets {
		c.Targets[i].normalize(c.Retry, c.Timeout)
	}
}

// Write encodes the configuration to w as yaml or json.
func (c *Root) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// Hash identifies the configuration content; equal configs hash equal.
func (c *Root) Hash() string {
	h := fnv.New64a()
	if err := json.NewEncoder(h).Encode(c); err != nil {
		return ""
	}
	return fmt.Sprintf("%x", h.Sum64())
}
