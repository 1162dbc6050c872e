// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sitestats computes daily per-site account statistics: it collapses
// raw snapshots to one record per site and day, picks the data-relative
// today and yesterday, and derives non-negative deltas, totals, digests and
// chart series from them.
//
// Everything in this package is a pure function over its arguments. Inputs
// are never mutated and every call allocates its own output, so the package
// is safe for concurrent use without locking.
package sitestats

import "time"

// DayLayout is the on-disk and wire format of UsageSnapshot.Day.
const DayLayout = "2006-01-02"

// Field names used by Fields and Delta.
const (
	FieldUpload        = "upload"
	FieldDownload      = "download"
	FieldSeeding       = "seeding"
	FieldSeedingSize   = "seeding_size"
	FieldLeeching      = "leeching"
	FieldLeechingSize  = "leeching_size"
	FieldRatio         = "ratio"
	FieldBonus         = "bonus"
	FieldMessageUnread = "message_unread"
	FieldUsername      = "username"
	FieldUserLevel     = "user_level"
	FieldJoinAt        = "join_at"
)

// UsageSnapshot is one observation of one site account on one calendar day.
// Upload, Download, SeedingCount and SeedingSize are cumulative counters.
type UsageSnapshot struct {
	SiteName      string  `json:"name" yaml:"name"`
	Domain        string  `json:"domain" yaml:"domain"`
	Day           string  `json:"updatedDay" yaml:"updatedDay"`
	Upload        int64   `json:"upload" yaml:"upload"`
	Download      int64   `json:"download" yaml:"download"`
	SeedingCount  int64   `json:"seeding" yaml:"seeding"`
	SeedingSize   int64   `json:"seedingSize" yaml:"seedingSize"`
	Leeching      int64   `json:"leeching" yaml:"leeching"`
	LeechingSize  int64   `json:"leechingSize" yaml:"leechingSize"`
	Ratio         float64 `json:"ratio" yaml:"ratio"`
	Bonus         float64 `json:"bonus" yaml:"bonus"`
	MessageUnread int64   `json:"messageUnread" yaml:"messageUnread"`
	UserID        string  `json:"userId,omitempty" yaml:"userId,omitempty"`
	Username      string  `json:"username,omitempty" yaml:"username,omitempty"`
	UserLevel     string  `json:"userLevel,omitempty" yaml:"userLevel,omitempty"`
	JoinAt        string  `json:"joinAt,omitempty" yaml:"joinAt,omitempty"`
	ErrMsg        string  `json:"errMsg,omitempty" yaml:"errMsg,omitempty"`

	// Extra carries site specific values that are passed through untouched.
	// Numeric entries take part in delta computation like the typed fields.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Key is the stable identity of the site the snapshot belongs to.
// Display names can collide, so the domain is preferred.
func (s UsageSnapshot) Key() string {
	if s.Domain != "" {
		return s.Domain
	}
	return s.SiteName
}

// Label is the name shown to users.
func (s UsageSnapshot) Label() string {
	if s.SiteName != "" {
		return s.SiteName
	}
	return s.Domain
}

// Fields flattens the snapshot into a field map. Extra entries never shadow
// the typed fields.
func (s UsageSnapshot) Fields() map[string]any {
	fields := make(map[string]any, 12+len(s.Extra))
	for k, v := range s.Extra {
		fields[k] = v
	}

	fields[FieldUpload] = s.Upload
	fields[FieldDownload] = s.Download
	fields[FieldSeeding] = s.SeedingCount
	fields[FieldSeedingSize] = s.SeedingSize
	fields[FieldLeeching] = s.Leeching
	fields[FieldLeechingSize] = s.LeechingSize
	fields[FieldRatio] = s.Ratio
	fields[FieldBonus] = s.Bonus
	fields[FieldMessageUnread] = s.MessageUnread
	fields[FieldUsername] = s.Username
	fields[FieldUserLevel] = s.UserLevel
	fields[FieldJoinAt] = s.JoinAt

	return fields
}

// PreviousDay returns the calendar day before day. ok is false when day is
// not a valid DayLayout date.
func PreviousDay(day string) (string, bool) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, -1).Format(DayLayout), true
}

// FormatDay renders t as a snapshot day in t's location.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}
