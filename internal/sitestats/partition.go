// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"slices"

	"github.com/rs/zerolog/log"
)

type dayKey struct {
	day  string
	site string
}

// Deduplicate keeps one snapshot per (day, site). A later snapshot with the
// same key replaces an earlier one. The result keeps the position of the
// first occurrence of every key.
func Deduplicate(snapshots []UsageSnapshot) []UsageSnapshot {
	if len(snapshots) == 0 {
		return []UsageSnapshot{}
	}

	index := make(map[dayKey]int, len(snapshots))
	out := make([]UsageSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		key := dayKey{day: s.Day, site: s.Key()}
		if i, ok := index[key]; ok {
			out[i] = s
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}

	return out
}

// Partition is the deduplicated data split into the data-relative today and
// yesterday.
type Partition struct {
	Today        string          `json:"today"`
	Yesterday    string          `json:"yesterday"`
	TodaySet     []UsageSnapshot `json:"todaySet"`
	YesterdaySet []UsageSnapshot `json:"yesterdaySet"`
}

// Empty reports the no data outcome.
func (p Partition) Empty() bool {
	return p.Today == ""
}

// Baseline returns yesterday's snapshot for the same site as s, or nil when
// the site has no record for exactly p.Yesterday.
func (p Partition) Baseline(s UsageSnapshot) *UsageSnapshot {
	key := s.Key()
	for i := range p.YesterdaySet {
		if p.YesterdaySet[i].Key() == key {
			return &p.YesterdaySet[i]
		}
	}
	return nil
}

// NewPartition deduplicates snapshots and splits them by day. Today is the
// greatest day present in the data, not the wall clock date. TodaySet is
// ordered by upload descending, ties keeping input order.
func NewPartition(snapshots []UsageSnapshot) Partition {
	deduped := Deduplicate(snapshots)
	if len(deduped) == 0 {
		return Partition{TodaySet: []UsageSnapshot{}, YesterdaySet: []UsageSnapshot{}}
	}

	// ISO dates are fixed width so string order is date order.
	today := ""
	for _, s := range deduped {
		if s.Day > today {
			today = s.Day
		}
	}
	if today == "" {
		return Partition{TodaySet: []UsageSnapshot{}, YesterdaySet: []UsageSnapshot{}}
	}

	yesterday, ok := PreviousDay(today)
	if !ok {
		log.Warn().Str("day", today).Msg("sitestats: latest snapshot day is not a valid date, no yesterday baseline")
	}

	p := Partition{
		Today:        today,
		Yesterday:    yesterday,
		TodaySet:     make([]UsageSnapshot, 0),
		YesterdaySet: make([]UsageSnapshot, 0),
	}
	for _, s := range deduped {
		switch {
		case s.Day == today:
			p.TodaySet = append(p.TodaySet, s)
		case ok && s.Day == yesterday:
			p.YesterdaySet = append(p.YesterdaySet, s)
		}
	}

	slices.SortStableFunc(p.TodaySet, func(a, b UsageSnapshot) int {
		switch {
		case a.Upload > b.Upload:
			return -1
		case a.Upload < b.Upload:
			return 1
		default:
			return 0
		}
	})

	return p
}

// PlanFillForward returns, for every site whose newest snapshot is older
// than the data-relative today, a copy of that snapshot dated today. Sites
// are returned in order of first appearance.
func PlanFillForward(snapshots []UsageSnapshot) []UsageSnapshot {
	deduped := Deduplicate(snapshots)
	if len(deduped) == 0 {
		return nil
	}

	today := ""
	newest := make(map[string]UsageSnapshot)
	var order []string
	for _, s := range deduped {
		if s.Day > today {
			today = s.Day
		}
		key := s.Key()
		current, seen := newest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || s.Day >= current.Day {
			newest[key] = s
		}
	}

	var out []UsageSnapshot
	for _, key := range order {
		s := newest[key]
		if s.Day == today {
			continue
		}
		filled := s
		filled.Day = today
		if s.Extra != nil {
			filled.Extra = make(map[string]any, len(s.Extra))
			for k, v := range s.Extra {
				filled.Extra[k] = v
			}
		}
		out = append(out, filled)
	}

	return out
}
