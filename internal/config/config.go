package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/iniguard/internal/discovery"
	"github.com/loykin/iniguard/internal/logger"
	"github.com/loykin/iniguard/internal/restore"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. INIGUARD_MONITOR_INTERVAL.
const EnvPrefix = "INIGUARD"

// MinInterval is the smallest accepted poll interval.
const MinInterval = time.Second

// Config is the top-level iniguard.toml structure.
type Config struct {
	AppDir  string        `mapstructure:"app_dir"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Search  SearchConfig  `mapstructure:"search"`
	Log     logger.Config `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	History HistoryConfig `mapstructure:"history"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Server  ServerConfig  `mapstructure:"server"`

	// Path is the file the config was read from, empty for defaults.
	Path string `mapstructure:"-"`
}

type MonitorConfig struct {
	ExePath             string        `mapstructure:"exe_path"`
	SearchPaths         []string      `mapstructure:"search_paths"`
	Interval            time.Duration `mapstructure:"interval"`
	RestoreDelaySeconds int           `mapstructure:"restore_delay_seconds"`
}

type SearchConfig struct {
	Paths  []string `mapstructure:"paths"`
	Suffix string   `mapstructure:"suffix"`
	First  bool     `mapstructure:"first"`
	Global bool     `mapstructure:"global"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HistoryConfig selects the history sinks. DSN and DSNs are merged.
type HistoryConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	DSN     string   `mapstructure:"dsn"`
	DSNs    []string `mapstructure:"dsns"`
}

// AllDSNs returns the configured sink DSNs without blanks.
func (h HistoryConfig) AllDSNs() []string {
	var out []string
	for _, d := range append([]string{h.DSN}, h.DSNs...) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

type NotifyConfig struct {
	Log          bool          `mapstructure:"log"`
	WebhookURL   string        `mapstructure:"webhook_url"`
	MQTTBroker   string        `mapstructure:"mqtt_broker"`
	MQTTTopic    string        `mapstructure:"mqtt_topic"`
	MQTTClientID string        `mapstructure:"mqtt_client_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	PIDFile  string `mapstructure:"pidfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_dir", "")
	v.SetDefault("monitor.exe_path", "")
	v.SetDefault("monitor.search_paths", []string{})
	v.SetDefault("monitor.interval", "3s")
	v.SetDefault("monitor.restore_delay_seconds", restore.DefaultDelaySeconds)
	v.SetDefault("search.paths", []string{})
	v.SetDefault("search.suffix", "engine")
	v.SetDefault("search.first", false)
	v.SetDefault("search.global", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 0)
	v.SetDefault("log.max_backups", 0)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.no_color", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.dsns", []string{})
	v.SetDefault("notify.log", true)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.mqtt_broker", "")
	v.SetDefault("notify.mqtt_topic", "iniguard/events")
	v.SetDefault("notify.mqtt_client_id", "iniguard")
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("server.listen", "127.0.0.1:8787")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.pidfile", "")
}

// LoadConfig reads path (TOML) on top of the defaults and applies
// INIGUARD_* environment overrides. An empty path yields defaults plus env.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Path = path
	if cfg.AppDir == "" {
		cfg.AppDir = defaultAppDir(path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppDir(path string) string {
	if path != "" {
		if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
			return abs
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// Validate checks and normalizes the configuration in place.
func (c *Config) Validate() error {
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 3 * time.Second
	}
	if c.Monitor.Interval < MinInterval {
		return fmt.Errorf("monitor.interval must be at least %s, got %s", MinInterval, c.Monitor.Interval)
	}
	c.Monitor.RestoreDelaySeconds = restore.ClampDelay(c.Monitor.RestoreDelaySeconds)
	if _, err := ResolveSuffix(c.Search.Suffix); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Notify.Timeout < 0 {
		return errors.New("notify.timeout must not be negative")
	}
	c.Monitor.SearchPaths = trimAll(c.Monitor.SearchPaths)
	c.Search.Paths = trimAll(c.Search.Paths)
	return nil
}

// ResolveSuffix maps a suffix name (engine, user_settings) or an explicit
// suffix ending in Engine.ini or GameUserSettings.ini to a search suffix.
func ResolveSuffix(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "engine", "engine.ini":
		return discovery.EngineSuffix, nil
	case "user_settings", "gameusersettings", "gameusersettings.ini":
		return discovery.UserSettingsSuffix, nil
	}
	clean := strings.ReplaceAll(strings.TrimSpace(s), `\`, "/")
	if strings.EqualFold(clean, discovery.EngineSuffix) || strings.EqualFold(clean, discovery.UserSettingsSuffix) {
		return clean, nil
	}
	return "", fmt.Errorf("unknown search suffix %q", s)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		// env overrides arrive as one ';'-joined value
		for _, p := range strings.Split(s, ";") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
