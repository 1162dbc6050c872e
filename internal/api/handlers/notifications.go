// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/sitestats/internal/domain"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
)

const maxRequestBodySize = 1 << 20

type NotificationsHandler struct {
	store   *models.NotificationTargetStore
	service *notifications.Service
}

func NewNotificationsHandler(store *models.NotificationTargetStore, service *notifications.Service) *NotificationsHandler {
	return &NotificationsHandler{
		store:   store,
		service: service,
	}
}

func (h *NotificationsHandler) Routes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Route("/targets", func(r chi.Router) {
			r.Get("/", h.ListTargets)
			r.Post("/", h.CreateTarget)
			r.Put("/{id}", h.UpdateTarget)
			r.Delete("/{id}", h.DeleteTarget)
			r.Post("/{id}/test", h.TestTarget)
		})
	})
}

type notificationTargetRequest struct {
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	URL            string    `json:"url"`
	Enabled        *bool     `json:"enabled"`
	EventTypes     *[]string `json:"eventTypes"`
	APIKey         string    `json:"apiKey"`
	SubPath        string    `json:"subPath"`
	MarkdownBreaks bool      `json:"markdownBreaks"`
}

type notificationTestRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// redactTarget hides the webhook key. Clients send the placeholder back to
// keep the stored key.
func redactTarget(t *models.NotificationTarget) *models.NotificationTarget {
	out := *t
	out.APIKey = domain.RedactString(t.APIKey)
	return &out
}

// ListEvents handles GET /api/notifications/events
func (h *NotificationsHandler) ListEvents(w http.ResponseWriter, _ *http.Request) {
	RespondJSON(w, http.StatusOK, notifications.EventDefinitions())
}

// ListTargets handles GET /api/notifications/targets
func (h *NotificationsHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("notifications: failed to list targets")
		RespondError(w, http.StatusInternalServerError, "failed to list notification targets")
		return
	}

	out := make([]*models.NotificationTarget, 0, len(targets))
	for _, t := range targets {
		out = append(out, redactTarget(t))
	}
	RespondJSON(w, http.StatusOK, out)
}

// CreateTarget handles POST /api/notifications/targets
func (h *NotificationsHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req notificationTargetRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	create, ok := h.buildTarget(w, &req, nil)
	if !ok {
		return
	}

	created, err := h.store.Create(r.Context(), create)
	if err != nil {
		h.respondStoreError(w, err, "failed to create notification target")
		return
	}

	RespondJSON(w, http.StatusCreated, redactTarget(created))
}

// UpdateTarget handles PUT /api/notifications/targets/{id}
func (h *NotificationsHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTargetID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req notificationTargetRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "failed to load notification target")
		return
	}

	update, ok := h.buildTarget(w, &req, existing)
	if !ok {
		return
	}

	updated, err := h.store.Update(r.Context(), id, update)
	if err != nil {
		h.respondStoreError(w, err, "failed to update notification target")
		return
	}

	RespondJSON(w, http.StatusOK, redactTarget(updated))
}

// DeleteTarget handles DELETE /api/notifications/targets/{id}
func (h *NotificationsHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTargetID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, err, "failed to delete notification target")
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

// TestTarget handles POST /api/notifications/targets/{id}/test
func (h *NotificationsHandler) TestTarget(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		RespondError(w, http.StatusInternalServerError, "notification service unavailable")
		return
	}

	id, ok := ParseTargetID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req notificationTestRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Test notification"
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = "This is a test notification from sitestats."
	}

	target, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "failed to load notification target")
		return
	}

	if err := h.service.SendTest(r.Context(), target, title, message); err != nil {
		log.Error().Err(err).Str("target", target.Name).Msg("notifications: test send failed")
		RespondError(w, http.StatusBadGateway, "failed to send test notification")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// buildTarget validates req. For updates, omitted fields and a redacted
// api key fall back to existing.
func (h *NotificationsHandler) buildTarget(w http.ResponseWriter, req *notificationTargetRequest, existing *models.NotificationTarget) (*models.NotificationTargetCreate, bool) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		RespondError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		RespondError(w, http.StatusBadRequest, "url is required")
		return nil, false
	}

	kind, err := models.ParseNotificationKind(req.Kind)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	enabled := true
	var eventTypes []string
	apiKey := strings.TrimSpace(req.APIKey)
	if existing != nil {
		enabled = existing.Enabled
		eventTypes = existing.EventTypes
		if domain.IsRedactedString(apiKey) {
			apiKey = existing.APIKey
		}
	}
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if req.EventTypes != nil {
		eventTypes, err = notifications.NormalizeEventTypes(*req.EventTypes)
		if err != nil {
			RespondError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
	}

	create := &models.NotificationTargetCreate{
		Name:           name,
		Kind:           string(kind),
		URL:            url,
		Enabled:        enabled,
		EventTypes:     eventTypes,
		APIKey:         apiKey,
		SubPath:        req.SubPath,
		MarkdownBreaks: req.MarkdownBreaks,
	}

	candidate := &models.NotificationTarget{Name: name, Kind: kind, URL: url, APIKey: apiKey, SubPath: req.SubPath}
	if err := notifications.ValidateTarget(candidate); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid notification target: "+err.Error())
		return nil, false
	}

	return create, true
}

func (h *NotificationsHandler) respondStoreError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrNotificationTargetNotFound):
		RespondError(w, http.StatusNotFound, "notification target not found")
	case errors.Is(err, models.ErrNotificationTargetExists):
		RespondError(w, http.StatusConflict, "notification target name already exists")
	case errors.Is(err, models.ErrInvalidNotificationKind):
		RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("notifications: " + fallback)
		RespondError(w, http.StatusInternalServerError, fallback)
	}
}
