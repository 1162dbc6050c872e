// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAPIToken(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		token      string
		header     string
		query      string
		wantStatus int
	}{
		{name: "no token configured", token: "", wantStatus: http.StatusOK},
		{name: "header matches", token: "secret", header: "secret", wantStatus: http.StatusOK},
		{name: "query param matches", token: "secret", query: "?apikey=secret", wantStatus: http.StatusOK},
		{name: "missing key", token: "secret", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", token: "secret", header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "header wins over query", token: "secret", header: "nope", query: "?apikey=secret", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyFromQuery("apikey")(RequireAPIToken(func() string { return tt.token })(okHandler))

			req := httptest.NewRequest(http.MethodGet, "/api/statistics/page"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAPITokenReadsTokenPerRequest(t *testing.T) {
	token := "first"
	handler := RequireAPIToken(func() string { return token })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, "first")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	token = "second"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAPITokenWithCustomRejection(t *testing.T) {
	reject := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid api key"}`))
	}
	handler := APIKeyFromQuery("apikey")(RequireAPITokenWith(func() string { return "secret" }, reject)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh_daily_by_domain?domain=a.example&apikey=nope", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"invalid api key"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh_daily_by_domain?domain=a.example&apikey=secret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
