// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	APIToken      string `toml:"apiToken" mapstructure:"apiToken"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// NotifyType selects the digest content: "" disables it, "inc" sends the
	// change since yesterday and "all" the cumulative values.
	NotifyType    string `toml:"notifyType" mapstructure:"notifyType"`
	DashboardType string `toml:"dashboardType" mapstructure:"dashboardType"`
	// DigestDelay in seconds. Refresh events arriving inside the window
	// produce a single digest.
	DigestDelay int `toml:"digestDelay" mapstructure:"digestDelay"`

	FillSchedule string `toml:"fillSchedule" mapstructure:"fillSchedule"`
	// OnlyOnce runs fill-forward once shortly after startup.
	OnlyOnce bool   `toml:"onlyOnce" mapstructure:"onlyOnce"`
	Timezone string `toml:"timezone" mapstructure:"timezone"`
}

const (
	DefaultFillSchedule = "59 23 * * *"
	// OnlyOnceDelay is how long after startup the one-off fill-forward runs.
	OnlyOnceDelay = 3 * time.Second
)

func (c *Config) DigestDelayDuration() time.Duration {
	if c.DigestDelay <= 0 {
		return 0
	}
	return time.Duration(c.DigestDelay) * time.Second
}

// Location resolves Timezone, falling back to the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		errs = append(errs, fmt.Errorf("invalid metricsPort %d", c.MetricsPort))
	}
	if c.DigestDelay < 0 {
		errs = append(errs, errors.New("digestDelay must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
