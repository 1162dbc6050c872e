// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/statistics"
	"github.com/autobrr/sitestats/internal/sitestats"
)

type StatisticsHandler struct {
	service   *statistics.Service
	snapshots *models.SiteUserDataStore
}

func NewStatisticsHandler(service *statistics.Service, snapshots *models.SiteUserDataStore) *StatisticsHandler {
	return &StatisticsHandler{
		service:   service,
		snapshots: snapshots,
	}
}

// Routes registers the statistics, event and snapshot endpoints.
func (h *StatisticsHandler) Routes(r chi.Router) {
	r.Route("/statistics", func(r chi.Router) {
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/page", h.GetPage)
		r.Get("/digest", h.GetDigest)
		r.Post("/digest/send", h.SendDigest)
		r.Post("/fill", h.FillForward)
	})

	r.Post("/events/site-refreshed", h.SiteRefreshed)

	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", h.ListSnapshots)
		r.Post("/", h.RecordSnapshot)
		r.Delete("/", h.DeleteSnapshots)
	})
}

// RefreshRoutes registers the refresh-by-domain endpoint. It is kept apart
// from Routes because it answers auth failures with a RefreshResponse.
func (h *StatisticsHandler) RefreshRoutes(r chi.Router) {
	r.Get("/refresh_daily_by_domain", h.RefreshByDomain)
}

// GetDashboard handles GET /api/statistics/dashboard?type=today|total|all
func (h *StatisticsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashType, err := statistics.ParseDashboardType(r.URL.Query().Get("type"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dashboard, err := h.service.Dashboard(r.Context(), dashType)
	if err != nil {
		log.Error().Err(err).Msg("statistics: failed to build dashboard")
		RespondError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}

	RespondJSON(w, http.StatusOK, dashboard)
}

// GetPage handles GET /api/statistics/page
func (h *StatisticsHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Page(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("statistics: failed to build page")
		RespondError(w, http.StatusInternalServerError, "failed to build statistics page")
		return
	}

	RespondJSON(w, http.StatusOK, page)
}

type digestResponse struct {
	sitestats.Digest
	Text string `json:"text"`
}

// GetDigest handles GET /api/statistics/digest?mode=inc|all
func (h *StatisticsHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	mode, err := sitestats.ParseNotifyMode(r.URL.Query().Get("mode"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	digest, err := h.service.Digest(r.Context(), mode)
	if err != nil {
		log.Error().Err(err).Msg("statistics: failed to build digest")
		RespondError(w, http.StatusInternalServerError, "failed to build digest")
		return
	}

	RespondJSON(w, http.StatusOK, digestResponse{Digest: digest, Text: digest.Text()})
}

type sendDigestRequest struct {
	Mode string `json:"mode"`
}

// SendDigest handles POST /api/statistics/digest/send
func (h *StatisticsHandler) SendDigest(w http.ResponseWriter, r *http.Request) {
	var req sendDigestRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	mode, err := sitestats.ParseNotifyMode(req.Mode)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if mode == sitestats.NotifyDisabled {
		mode = h.service.Config().NotifyMode
	}

	if err := h.service.SendDigest(r.Context(), mode); err != nil {
		log.Error().Err(err).Msg("statistics: failed to send digest")
		RespondError(w, http.StatusInternalServerError, "failed to send digest")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// FillForward handles POST /api/statistics/fill
func (h *StatisticsHandler) FillForward(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.FillForward(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("statistics: fill-forward failed")
		RespondError(w, http.StatusInternalServerError, "fill-forward failed")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

type siteRefreshedRequest struct {
	SiteID string `json:"siteId"`
}

// SiteRefreshed handles POST /api/events/site-refreshed
func (h *StatisticsHandler) SiteRefreshed(w http.ResponseWriter, r *http.Request) {
	var req siteRefreshedRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	siteID := strings.TrimSpace(req.SiteID)
	if siteID == "" {
		RespondError(w, http.StatusBadRequest, "siteId is required")
		return
	}

	scheduled := h.service.HandleSiteRefreshed(r.Context(), siteID)
	RespondJSON(w, http.StatusAccepted, map[string]bool{"digestScheduled": scheduled})
}

// ListSnapshots handles GET /api/snapshots?domain=&since=&limit=&offset=
func (h *StatisticsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		rows []*models.SiteUserData
		err  error
	)
	switch domain, since := strings.TrimSpace(query.Get("domain")), strings.TrimSpace(query.Get("since")); {
	case domain != "":
		rows, err = h.snapshots.ListByDomain(r.Context(), domain)
	case since != "":
		if _, ok := sitestats.PreviousDay(since); !ok {
			RespondError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		rows, err = h.snapshots.ListSince(r.Context(), since)
	default:
		rows, err = h.snapshots.List(r.Context())
	}
	if err != nil {
		log.Error().Err(err).Msg("statistics: failed to list snapshots")
		RespondError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}

	RespondJSON(w, http.StatusOK, paginate(rows, ParsePagination(r, 100, 1000)))
}

// RecordSnapshot handles POST /api/snapshots
func (h *StatisticsHandler) RecordSnapshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var data models.SiteUserData
	if !DecodeJSON(w, r, &data) {
		return
	}

	stored, err := h.service.RecordSnapshot(r.Context(), &data)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSiteUserData) {
			RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("domain", data.Domain).Msg("statistics: failed to record snapshot")
		RespondError(w, http.StatusInternalServerError, "failed to record snapshot")
		return
	}

	RespondJSON(w, http.StatusCreated, stored)
}

// DeleteSnapshots handles DELETE /api/snapshots?domain= or ?before=
func (h *StatisticsHandler) DeleteSnapshots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	domain := strings.TrimSpace(query.Get("domain"))
	before := strings.TrimSpace(query.Get("before"))

	var (
		deleted int64
		err     error
	)
	switch {
	case domain != "":
		deleted, err = h.snapshots.DeleteDomain(r.Context(), domain)
	case before != "":
		if _, ok := sitestats.PreviousDay(before); !ok {
			RespondError(w, http.StatusBadRequest, "before must be YYYY-MM-DD")
			return
		}
		deleted, err = h.snapshots.DeleteBefore(r.Context(), before)
	default:
		RespondError(w, http.StatusBadRequest, "domain or before is required")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("statistics: failed to delete snapshots")
		RespondError(w, http.StatusInternalServerError, "failed to delete snapshots")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// RejectRefresh answers an unauthenticated refresh-by-domain call.
func RejectRefresh(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusUnauthorized, RefreshResponse{Message: "invalid api key"})
}

// RefreshResponse is the reply of the refresh-by-domain endpoint.
type RefreshResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RefreshByDomain handles GET /api/refresh_daily_by_domain?domain=
func (h *StatisticsHandler) RefreshByDomain(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		RespondJSON(w, http.StatusBadRequest, RefreshResponse{Message: "domain is required"})
		return
	}

	stored, err := h.service.RefreshByDomain(r.Context(), domain)
	switch {
	case errors.Is(err, statistics.ErrUnknownSite):
		RespondJSON(w, http.StatusNotFound, RefreshResponse{Message: "site does not exist"})
		return
	case errors.Is(err, statistics.ErrNoRefreshData):
		RespondJSON(w, http.StatusOK, RefreshResponse{Message: "refresh returned no data"})
		return
	case err != nil:
		log.Error().Err(err).Str("domain", domain).Msg("statistics: refresh by domain failed")
		RespondJSON(w, http.StatusInternalServerError, RefreshResponse{Message: "refresh failed"})
		return
	}

	RespondJSON(w, http.StatusOK, RefreshResponse{Success: true, Message: "ok", Data: stored})
}
