package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/iniguard/internal/restore"
	"github.com/spf13/viper"
)

// Settings is the state remembered between runs in settings.json.
type Settings struct {
	LastConfigPath      string   `mapstructure:"last_config_path" json:"last_config_path"`
	LastSearchPaths     []string `mapstructure:"last_search_paths" json:"last_search_paths"`
	LastGameSearchPaths []string `mapstructure:"last_game_search_paths" json:"last_game_search_paths"`
	RestoreDelaySeconds int      `mapstructure:"restore_delay_seconds" json:"restore_delay_seconds"`
}

// DefaultSettings is used when settings.json is missing or unreadable.
func DefaultSettings() Settings {
	return Settings{RestoreDelaySeconds: restore.DefaultDelaySeconds}
}

// ErrCorruptSettings wraps a decode failure. LoadSettings still returns
// usable defaults alongside it.
var ErrCorruptSettings = errors.New("corrupt settings file")

// LoadSettings reads settings.json. A missing file yields def. A corrupt
// file yields def together with an error wrapping ErrCorruptSettings.
func LoadSettings(path string, def Settings) (Settings, error) {
	def = def.Normalize()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return def, nil
		}
		return def, fmt.Errorf("stat settings: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("restore_delay_seconds", def.RestoreDelaySeconds)
	if err := v.ReadInConfig(); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorruptSettings, path, err)
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return def, fmt.Errorf("%w: %s: %v", ErrCorruptSettings, path, err)
	}
	return s.Normalize(), nil
}

// SaveSettings writes s to path, creating its directory.
func SaveSettings(path string, s Settings) error {
	s = s.Normalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("last_config_path", s.LastConfigPath)
	v.Set("last_search_paths", nonNil(s.LastSearchPaths))
	v.Set("last_game_search_paths", nonNil(s.LastGameSearchPaths))
	v.Set("restore_delay_seconds", s.RestoreDelaySeconds)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Normalize clamps the delay and trims the search path lists.
func (s Settings) Normalize() Settings {
	s.RestoreDelaySeconds = restore.ClampDelay(s.RestoreDelaySeconds)
	s.LastSearchPaths = trimAll(s.LastSearchPaths)
	s.LastGameSearchPaths = trimAll(s.LastGameSearchPaths)
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
