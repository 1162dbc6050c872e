// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/sitestats/internal/buildinfo"
	"github.com/autobrr/sitestats/internal/domain"
)

const (
	appName        = "sitestats"
	configFileName = "config.toml"
	databaseName   = "sitestats.db"
	envPrefix      = "SITESTATS__"
)

type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string
	logs       *logOutput

	mu        sync.RWMutex
	listeners []func(*domain.Config)
}

// New loads the configuration. configPath may point at a config.toml or at
// the directory holding it; empty uses the platform config directory. A
// missing config file is created with defaults.
func New(configPath string) (*AppConfig, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c := &AppConfig{
		viper:      v,
		configPath: path,
		logs:       &logOutput{},
	}

	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	c.Config = cfg

	return c, nil
}

func (c *AppConfig) load() (*domain.Config, error) {
	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Version = buildinfo.Version

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Current returns the active configuration. Reloads swap the pointer.
func (c *AppConfig) Current() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDataDir returns dataDir, defaulting to the directory of the config file.
func (c *AppConfig) GetDataDir() string {
	if dir := strings.TrimSpace(c.Current().DataDir); dir != "" {
		return dir
	}
	return filepath.Dir(c.configPath)
}

// GetDatabasePath returns databasePath, defaulting to sitestats.db in the
// data directory. Relative paths resolve against the data directory.
func (c *AppConfig) GetDatabasePath() string {
	p := strings.TrimSpace(c.Current().DatabasePath)
	if p == "" {
		return filepath.Join(c.GetDataDir(), databaseName)
	}
	if !filepath.IsAbs(p) {
		return filepath.Join(c.GetDataDir(), p)
	}
	return p
}

// OnReload registers fn to run with the new configuration after the config
// file changes.
func (c *AppConfig) OnReload(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// WatchConfig reloads the file on change. Invalid edits are logged and the
// previous configuration stays active.
func (c *AppConfig) WatchConfig() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c.reload()
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) reload() {
	cfg, err := c.load()
	if err != nil {
		log.Error().Err(err).Str("path", c.configPath).Msg("Ignoring invalid config change")
		return
	}

	c.mu.Lock()
	c.Config = cfg
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.mu.Unlock()

	if err := c.ApplyLogConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to apply log settings")
	}

	log.Info().Str("path", c.configPath).Msg("Config reloaded")

	for _, fn := range listeners {
		fn(cfg)
	}
}

// UpdateLogSettings persists the log settings to the config file, keeping
// its comments and layout.
func (c *AppConfig) UpdateLogSettings(level, path string, maxSize, maxBackups int) error {
	content, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, path, maxSize, maxBackups)
	if err := os.WriteFile(c.configPath, []byte(updated), 0o640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// re-read rather than Set so later hand edits to the file still apply
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", c.configPath, err)
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.Config = cfg
	c.mu.Unlock()

	return c.ApplyLogConfig()
}

func resolveConfigPath(configPath string) (string, error) {
	if configPath == "" {
		configPath = getDefaultConfigDir()
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		return filepath.Abs(configPath)
	}

	info, err := os.Stat(configPath)
	switch {
	case err == nil && !info.IsDir():
		return filepath.Abs(configPath)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("stat config path: %w", err)
	}

	return filepath.Abs(filepath.Join(configPath, configFileName))
}

// getDefaultConfigDir honours XDG_CONFIG_HOME. The container layout mounts
// /config directly, so that value is used as is.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if filepath.Clean(xdg) == "/config" {
			return "/config"
		}
		return filepath.Join(xdg, appName)
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, appName)
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o640); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("Created default config")
	return nil
}

var defaults = map[string]any{
	"host":                  "localhost",
	"port":                  7480,
	"baseUrl":               "",
	"apiToken":              "",
	"logLevel":              "INFO",
	"logPath":               "",
	"logMaxSize":            50,
	"logMaxBackups":         3,
	"dataDir":               "",
	"databasePath":          "",
	"metricsEnabled":        false,
	"metricsHost":           "127.0.0.1",
	"metricsPort":           9074,
	"metricsBasicAuthUsers": "",
	"notifyType":            "",
	"dashboardType":         "today",
	"digestDelay":           0,
	"fillSchedule":          domain.DefaultFillSchedule,
	"onlyOnce":              false,
	"timezone":              "",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func bindEnv(v *viper.Viper) error {
	for key := range defaults {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// envName maps a camelCase key to its variable, e.g. databasePath becomes
// SITESTATS__DATABASE_PATH.
func envName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost"
host = "localhost"

# Port
# Default: 7480
port = 7480

# Base URL when served behind a reverse proxy subpath
# Optional
#baseUrl = "/sitestats/"

# API token required by every API call except health
# Sent as X-API-Key header or apikey query parameter
#apiToken = ""

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/sitestats.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Database file, defaults to sitestats.db next to this file
#databasePath = ""

# Digest notification after all sites refreshed
# Options: "" (off), "inc" (change since yesterday), "all" (cumulative)
#notifyType = "inc"

# Dashboard content
# Options: "today" (charts), "total" (totals), "all" (both)
dashboardType = "today"

# Seconds to wait for further refresh events before sending the digest
#digestDelay = 0

# Cron expression for copying yesterday's data to sites without data today
# Default: "59 23 * * *"
fillSchedule = "59 23 * * *"

# Run fill-forward once shortly after startup
#onlyOnce = false

# Timezone for the schedule, defaults to the system zone
#timezone = "Asia/Shanghai"

# Prometheus metrics
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074
# Comma separated user:password pairs
#metricsBasicAuthUsers = ""
`
