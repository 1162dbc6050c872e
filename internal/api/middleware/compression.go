// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingZstd   = "zstd"
	encodingBrotli = "br"
	encodingGzip   = "gzip"
)

// supported encodings in preference order for equal quality values
var supportedEncodings = []string{encodingZstd, encodingBrotli, encodingGzip}

// Compress encodes JSON and text responses of at least minSize bytes with
// the best encoding the client accepts. Level is clamped to 1..9.
func Compress(minSize, level int) func(http.Handler) http.Handler {
	level = min(max(level, 1), 9)
	if minSize < 0 {
		minSize = 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
			if encoding == "" || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			cw := &compressWriter{
				ResponseWriter: w,
				encoding:       encoding,
				level:          level,
				minSize:        minSize,
				status:         http.StatusOK,
			}
			defer cw.Close()

			next.ServeHTTP(cw, r)
		})
	}
}

// compressWriter buffers the first minSize bytes to decide whether
// compression is worth it.
type compressWriter struct {
	http.ResponseWriter

	encoding string
	level    int
	minSize  int

	status      int
	wroteHeader bool
	decided     bool
	buf         []byte
	enc         io.WriteCloser
}

func (w *compressWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
}

func (w *compressWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true

	if w.decided {
		return w.out().Write(p)
	}

	w.buf = append(w.buf, p...)
	if len(w.buf) >= w.minSize {
		if err := w.decide(true); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *compressWriter) Flush() {
	if !w.decided {
		_ = w.decide(len(w.buf) >= w.minSize)
	}
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Close() error {
	if !w.decided {
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

func (w *compressWriter) out() io.Writer {
	if w.enc != nil {
		return w.enc
	}
	return w.ResponseWriter
}

// decide sends the header and the buffered bytes, through an encoder when
// compress is set and the response qualifies.
func (w *compressWriter) decide(compress bool) error {
	w.decided = true

	h := w.Header()
	if h.Get("Content-Type") == "" && len(w.buf) > 0 {
		h.Set("Content-Type", http.DetectContentType(w.buf))
	}

	if compress && h.Get("Content-Encoding") == "" && compressible(h.Get("Content-Type")) && bodyAllowed(w.status) {
		enc, err := newEncoder(w.encoding, w.ResponseWriter, w.level)
		if err != nil {
			return err
		}
		w.enc = enc
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
	}

	w.ResponseWriter.WriteHeader(w.status)

	if len(w.buf) == 0 {
		return nil
	}
	buf := w.buf
	w.buf = nil
	_, err := w.out().Write(buf)
	return err
}

func newEncoder(encoding string, dst io.Writer, level int) (io.WriteCloser, error) {
	switch encoding {
	case encodingZstd:
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	case encodingBrotli:
		return brotli.NewWriterLevel(dst, level), nil
	default:
		return gzip.NewWriterLevel(dst, level)
	}
}

func compressible(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "javascript") ||
		strings.Contains(ct, "xml")
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}

// negotiateEncoding picks the supported encoding with the highest quality
// value. Ties go to the earlier entry of supportedEncodings.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}

	qualities := make(map[string]float64)
	wildcard := -1.0

	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		q := 1.0
		if k, v, ok := strings.Cut(strings.TrimSpace(params), "="); ok && strings.TrimSpace(k) == "q" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				continue
			}
			q = parsed
		}

		if name == "*" {
			wildcard = q
			continue
		}
		qualities[name] = q
	}

	best, bestQ := "", 0.0
	for _, enc := range supportedEncodings {
		q, ok := qualities[enc]
		if !ok {
			q = wildcard
		}
		if q > bestQ {
			best, bestQ = enc, q
		}
	}
	return best
}
