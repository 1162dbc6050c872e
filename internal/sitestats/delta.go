// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"math"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Delta holds the per-field increase of one site between yesterday and
// today. A field is absent when it was not numeric in both records.
type Delta map[string]int64

// Upload returns the upload increase, 0 when absent.
func (d Delta) Upload() int64 { return d[FieldUpload] }

// Download returns the download increase, 0 when absent.
func (d Delta) Download() int64 { return d[FieldDownload] }

// Has reports whether field took part in the computation.
func (d Delta) Has(field string) bool {
	_, ok := d[field]
	return ok
}

// ComputeDelta returns max(0, today - yesterday) for every field numeric in
// both snapshots. Without a baseline every numeric field of today is passed
// through, since all of it is new.
func ComputeDelta(today UsageSnapshot, yesterday *UsageSnapshot) Delta {
	current := today.Fields()

	if yesterday == nil {
		out := make(Delta, len(current))
		for field, raw := range current {
			value, ok := numericValue(raw)
			if !ok {
				logNonNumeric(today, field, raw)
				continue
			}
			out[field] = value
		}
		return out
	}

	previous := yesterday.Fields()
	out := make(Delta, len(current))
	for field, raw := range current {
		prevRaw, ok := previous[field]
		if !ok {
			continue
		}

		value, ok := numericValue(raw)
		if !ok {
			logNonNumeric(today, field, raw)
			continue
		}
		prev, ok := numericValue(prevRaw)
		if !ok {
			logNonNumeric(*yesterday, field, prevRaw)
			continue
		}

		// counters can reset when a site wipes its stats
		out[field] = max(value-prev, 0)
	}

	return out
}

// numericValue interprets integers, floats and strings made only of ASCII
// digits. Floats are truncated toward zero.
func numericValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return clampUint(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return clampUint(n), true
	case float32:
		return truncateFloat(float64(n))
	case float64:
		return truncateFloat(n)
	case string:
		return parseDigits(n)
	default:
		return 0, false
	}
}

func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// all digits but wider than int64
		return math.MaxInt64, true
	}
	return value, true
}

func truncateFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}

func logNonNumeric(s UsageSnapshot, field string, value any) {
	log.Trace().
		Str("site", s.Key()).
		Str("day", s.Day).
		Str("field", field).
		Interface("value", value).
		Msg("sitestats: skipping non-numeric field")
}
