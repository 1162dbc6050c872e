// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/config"
	"github.com/autobrr/sitestats/internal/domain"
)

// ConfigHandler exposes the running configuration.
type ConfigHandler struct {
	cfg *config.AppConfig
}

// ConfigResponse is the configuration payload returned to clients.
type ConfigResponse struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	BaseURL       string `json:"baseUrl"`
	APIToken      string `json:"apiToken"`
	LogLevel      string `json:"logLevel"`
	LogPath       string `json:"logPath"`
	LogMaxSize    int    `json:"logMaxSize"`
	LogMaxBackups int    `json:"logMaxBackups"`
	NotifyType    string `json:"notifyType"`
	DashboardType string `json:"dashboardType"`
	DigestDelay   int    `json:"digestDelay"`
	FillSchedule  string `json:"fillSchedule"`
	Timezone      string `json:"timezone"`
	Version       string `json:"version"`
}

// LogSettingsRequest updates the persisted log settings. Omitted fields
// keep their current value.
type LogSettingsRequest struct {
	LogLevel      *string `json:"logLevel"`
	LogPath       *string `json:"logPath"`
	LogMaxSize    *int    `json:"logMaxSize"`
	LogMaxBackups *int    `json:"logMaxBackups"`
}

func NewConfigHandler(cfg *config.AppConfig) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) Routes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.GetConfig)
		r.Patch("/log", h.UpdateLogSettings)
	})
}

func (h *ConfigHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	c := h.cfg.Current()
	RespondJSON(w, http.StatusOK, ConfigResponse{
		Host:          c.Host,
		Port:          c.Port,
		BaseURL:       c.BaseURL,
		APIToken:      domain.RedactString(c.APIToken),
		LogLevel:      c.LogLevel,
		LogPath:       c.LogPath,
		LogMaxSize:    c.LogMaxSize,
		LogMaxBackups: c.LogMaxBackups,
		NotifyType:    c.NotifyType,
		DashboardType: c.DashboardType,
		DigestDelay:   c.DigestDelay,
		FillSchedule:  c.FillSchedule,
		Timezone:      c.Timezone,
		Version:       c.Version,
	})
}

func (h *ConfigHandler) UpdateLogSettings(w http.ResponseWriter, r *http.Request) {
	var req LogSettingsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	c := h.cfg.Current()
	level, path, maxSize, maxBackups := c.LogLevel, c.LogPath, c.LogMaxSize, c.LogMaxBackups
	if req.LogLevel != nil {
		level = strings.ToUpper(strings.TrimSpace(*req.LogLevel))
	}
	if req.LogPath != nil {
		path = strings.TrimSpace(*req.LogPath)
	}
	if req.LogMaxSize != nil {
		maxSize = *req.LogMaxSize
	}
	if req.LogMaxBackups != nil {
		maxBackups = *req.LogMaxBackups
	}
	if maxSize < 0 || maxBackups < 0 {
		RespondError(w, http.StatusBadRequest, "log rotation values must not be negative")
		return
	}

	if err := h.cfg.UpdateLogSettings(level, path, maxSize, maxBackups); err != nil {
		log.Error().Err(err).Msg("Failed to update log settings")
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
