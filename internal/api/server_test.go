// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sitestats/internal/api/handlers"
	"github.com/autobrr/sitestats/internal/config"
	"github.com/autobrr/sitestats/internal/database"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/services/notifications"
	"github.com/autobrr/sitestats/internal/services/statistics"
)

func newTestDependencies(t *testing.T, apiToken, baseURL string) *Dependencies {
	t.Helper()

	dir := t.TempDir()
	content := "host = \"localhost\"\nport = 7480\napiToken = \"" + apiToken + "\"\nbaseUrl = \"" + baseURL + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := config.New(dir)
	require.NoError(t, err)

	db, err := database.New(cfg.GetDatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	snapshots := models.NewSiteUserDataStore(db)
	targets := models.NewNotificationTargetStore(db)
	notifier := notifications.NewService(targets, zerolog.Nop())

	return &Dependencies{
		Config:              cfg,
		Statistics:          statistics.NewService(snapshots, notifier, statistics.Config{}, zerolog.Nop()),
		Snapshots:           snapshots,
		NotificationTargets: targets,
		Notifications:       notifier,
		Logger:              zerolog.Nop(),
	}
}

func TestHandlerRequiresDependencies(t *testing.T) {
	_, err := NewServer(nil).Handler()
	require.Error(t, err)

	_, err = NewServer(&Dependencies{Config: &config.AppConfig{}}).Handler()
	require.Error(t, err)
}

func TestAPIKeyProtectsRoutes(t *testing.T) {
	router, err := NewServer(newTestDependencies(t, "secret", "")).Handler()
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "health is public", path: "/api/health", wantStatus: http.StatusOK},
		{name: "readiness is public", path: "/api/health/readiness", wantStatus: http.StatusOK},
		{name: "missing key", path: "/api/statistics/page", wantStatus: http.StatusUnauthorized},
		{name: "header key", path: "/api/statistics/page", header: "secret", wantStatus: http.StatusOK},
		{name: "query key", path: "/api/refresh_daily_by_domain?domain=a.example&apikey=secret", wantStatus: http.StatusNotFound},
		{name: "wrong query key", path: "/api/refresh_daily_by_domain?domain=a.example&apikey=nope", wantStatus: http.StatusUnauthorized},
		{name: "version", path: "/api/version", header: "secret", wantStatus: http.StatusOK},
		{name: "config", path: "/api/config/", header: "secret", wantStatus: http.StatusOK},
		{name: "unknown route", path: "/api/nope", header: "secret", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestConfigResponseRedactsToken(t *testing.T) {
	router, err := NewServer(newTestDependencies(t, "secret", "")).Handler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/config/", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "<redacted>", body["apiToken"])
}

func TestBaseURLPrefix(t *testing.T) {
	router, err := NewServer(newTestDependencies(t, "", "/stats/")).Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesRegistered(t *testing.T) {
	router, err := NewServer(newTestDependencies(t, "", "")).Handler()
	require.NoError(t, err)

	mux, ok := router.(chi.Routes)
	require.True(t, ok)

	var routes []string
	require.NoError(t, chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	}))

	for _, want := range []string{
		"GET /api/statistics/dashboard",
		"GET /api/statistics/page",
		"GET /api/statistics/digest",
		"POST /api/statistics/fill",
		"POST /api/events/site-refreshed",
		"POST /api/snapshots/",
		"GET /api/refresh_daily_by_domain",
		"PUT /api/notifications/targets/{id}",
		"POST /api/notifications/targets/{id}/test",
	} {
		assert.Contains(t, routes, want)
	}
}

func TestRefreshRejectsInvalidKeyWithJSON(t *testing.T) {
	router, err := NewServer(newTestDependencies(t, "secret", "")).Handler()
	require.NoError(t, err)

	for _, path := range []string{
		"/api/refresh_daily_by_domain?domain=a.example",
		"/api/refresh_daily_by_domain?domain=a.example&apikey=nope",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

		var body handlers.RefreshResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), path)
		assert.False(t, body.Success)
		assert.Equal(t, "invalid api key", body.Message)
	}

	// other routes keep the plain rejection
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/statistics/page", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized")
}

func TestShutdownBeforeListen(t *testing.T) {
	srv := NewServer(newTestDependencies(t, "", ""))
	require.NoError(t, srv.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe kept running after Shutdown")
	}
}

func TestListenAndServeReportsMissingDependencies(t *testing.T) {
	err := NewServer(&Dependencies{}).ListenAndServe()
	require.ErrorContains(t, err, "config is required")
}
