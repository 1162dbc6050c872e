// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: ""},
		{header: "identity", want: ""},
		{header: "gzip", want: "gzip"},
		{header: "gzip, deflate, br", want: "br"},
		{header: "gzip, br, zstd", want: "zstd"},
		{header: "br;q=0.5, gzip;q=0.8", want: "gzip"},
		{header: "zstd;q=0, gzip", want: "gzip"},
		{header: "*", want: "zstd"},
		{header: "*;q=0.1, gzip;q=0.5", want: "gzip"},
		{header: "GZIP", want: "gzip"},
		{header: "gzip;q=abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, negotiateEncoding(tt.header))
		})
	}
}

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, body)
	})
}

func TestCompressEncodings(t *testing.T) {
	t.Parallel()

	body := `{"sites":[` + strings.Repeat(`{"site":"a.example","upload":1073741824},`, 100) + `{}]}`

	decoders := map[string]func(io.Reader) (io.Reader, error){
		"gzip": func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		"br":   func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
		"zstd": func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	}

	for encoding, decode := range decoders {
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/statistics/page", nil)
			req.Header.Set("Accept-Encoding", encoding)
			rec := httptest.NewRecorder()

			Compress(256, 5)(jsonHandler(body)).ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, encoding, rec.Header().Get("Content-Encoding"))
			assert.Contains(t, rec.Header().Values("Vary"), "Accept-Encoding")
			assert.Less(t, rec.Body.Len(), len(body))

			r, err := decode(bytes.NewReader(rec.Body.Bytes()))
			require.NoError(t, err)
			decoded, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, body, string(decoded))
		})
	}
}

func TestCompressSkipsSmallBodies(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	Compress(1024, 5)(jsonHandler(`{"status":"ok"}`)).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCompressSkipsBinaryAndNoContent(t *testing.T) {
	t.Parallel()

	binary := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(bytes.Repeat([]byte{0x89}, 4096))
	})

	req := httptest.NewRequest(http.MethodGet, "/chart.png", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compress(16, 5)(binary).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, 4096, rec.Body.Len())

	noContent := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rec = httptest.NewRecorder()
	Compress(0, 5)(noContent).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestCompressPassesThroughWithoutAcceptEncoding(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Compress(0, 5)(jsonHandler(`{"a":1}`)).ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Header().Get("Vary"))
	assert.Equal(t, `{"a":1}`, rec.Body.String())
}
