// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog/log"
)

const APIKeyHeader = "X-API-Key"

// APIKeyFromQuery promotes an API key query param into the X-API-Key header.
func APIKeyFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(APIKeyHeader) == "" {
				if apiKey := r.URL.Query().Get(param); apiKey != "" {
					r.Header.Set(APIKeyHeader, apiKey)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIToken rejects requests whose X-API-Key does not match token().
// The token is read per request so config reloads apply immediately. An
// empty token disables the check.
func RequireAPIToken(token func() string) func(http.Handler) http.Handler {
	return RequireAPITokenWith(token, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// RequireAPITokenWith is RequireAPIToken with a custom rejection response.
func RequireAPITokenWith(token func() string, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expected := token()
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(APIKeyHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("Rejected request with invalid API key")
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
