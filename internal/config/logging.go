// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logOutput struct {
	mu   sync.Mutex
	file *lumberjack.Logger
}

// ApplyLogConfig points the global logger at stdout or the rotated log file
// and sets the level.
func (c *AppConfig) ApplyLogConfig() error {
	cfg := c.Current()

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}

	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()

	if c.logs.file != nil {
		_ = c.logs.file.Close()
		c.logs.file = nil
	}

	if p := strings.TrimSpace(cfg.LogPath); p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.GetDataDir(), p)
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}

		c.logs.file = &lumberjack.Logger{
			Filename:   p,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
		}
		writer = zerolog.MultiLevelWriter(writer, c.logs.file)
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	return nil
}

// Close releases the log file.
func (c *AppConfig) Close() error {
	c.logs.mu.Lock()
	defer c.logs.mu.Unlock()

	if c.logs.file == nil {
		return nil
	}
	err := c.logs.file.Close()
	c.logs.file = nil
	return err
}

func parseLogLevel(raw string) (zerolog.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}
