// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(domain, day string, upload, download int64) UsageSnapshot {
	return UsageSnapshot{SiteName: domain, Domain: domain, Day: day, Upload: upload, Download: download}
}

func TestDeduplicate(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		out := Deduplicate(nil)
		require.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("later entry wins", func(t *testing.T) {
		t.Parallel()
		in := []UsageSnapshot{
			snap("a.example", "2024-01-02", 100, 0),
			snap("b.example", "2024-01-02", 5, 0),
			snap("a.example", "2024-01-02", 130, 0),
		}
		out := Deduplicate(in)
		require.Len(t, out, 2)
		assert.Equal(t, int64(130), out[0].Upload)
		assert.Equal(t, "b.example", out[1].Domain)
	})

	t.Run("same site on different days is kept", func(t *testing.T) {
		t.Parallel()
		in := []UsageSnapshot{
			snap("a.example", "2024-01-01", 100, 0),
			snap("a.example", "2024-01-02", 130, 0),
		}
		assert.Len(t, Deduplicate(in), 2)
	})

	t.Run("falls back to site name without domain", func(t *testing.T) {
		t.Parallel()
		in := []UsageSnapshot{
			{SiteName: "Alpha", Day: "2024-01-02", Upload: 1},
			{SiteName: "Beta", Day: "2024-01-02", Upload: 2},
			{SiteName: "Alpha", Day: "2024-01-02", Upload: 3},
		}
		out := Deduplicate(in)
		require.Len(t, out, 2)
		assert.Equal(t, int64(3), out[0].Upload)
	})

	t.Run("output is a selection of the input", func(t *testing.T) {
		t.Parallel()
		in := []UsageSnapshot{
			snap("a.example", "2024-01-01", 1, 2),
			snap("b.example", "2024-01-01", 3, 4),
			snap("a.example", "2024-01-01", 5, 6),
			snap("a.example", "2024-01-02", 7, 8),
			snap("b.example", "2024-01-02", 9, 10),
			snap("b.example", "2024-01-02", 11, 12),
		}
		out := Deduplicate(in)

		seen := make(map[dayKey]struct{})
		for _, s := range out {
			key := dayKey{day: s.Day, site: s.Key()}
			_, dup := seen[key]
			assert.False(t, dup, "duplicate key %v", key)
			seen[key] = struct{}{}
			assert.Contains(t, in, s)
		}
		assert.Len(t, out, 4)
	})
}

func TestNewPartition(t *testing.T) {
	t.Parallel()

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		p := NewPartition(nil)
		assert.True(t, p.Empty())
		assert.Equal(t, "", p.Today)
		assert.Empty(t, p.TodaySet)
		assert.Empty(t, p.YesterdaySet)
	})

	t.Run("today is the latest day in the data", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("a.example", "2024-01-01", 100, 50),
			snap("a.example", "2024-01-02", 130, 50),
		})
		require.False(t, p.Empty())
		assert.Equal(t, "2024-01-02", p.Today)
		assert.Equal(t, "2024-01-01", p.Yesterday)
		require.Len(t, p.TodaySet, 1)
		require.Len(t, p.YesterdaySet, 1)
	})

	t.Run("yesterday needs an exact date match", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("a.example", "2023-12-30", 100, 50),
			snap("a.example", "2024-01-02", 130, 50),
		})
		assert.Equal(t, "2024-01-01", p.Yesterday)
		assert.Empty(t, p.YesterdaySet)
		assert.Nil(t, p.Baseline(p.TodaySet[0]))
	})

	t.Run("crosses month and year boundaries", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{snap("a.example", "2024-03-01", 1, 1)})
		assert.Equal(t, "2024-02-29", p.Yesterday)

		p = NewPartition([]UsageSnapshot{snap("a.example", "2025-01-01", 1, 1)})
		assert.Equal(t, "2024-12-31", p.Yesterday)
	})

	t.Run("today set ordered by upload with stable ties", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("c.example", "2024-01-02", 10, 0),
			snap("a.example", "2024-01-02", 50, 0),
			snap("d.example", "2024-01-02", 10, 0),
			snap("b.example", "2024-01-02", 70, 0),
		})
		var order []string
		for _, s := range p.TodaySet {
			order = append(order, s.Domain)
		}
		assert.Equal(t, []string{"b.example", "a.example", "c.example", "d.example"}, order)
	})

	t.Run("invalid latest day yields no yesterday", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{snap("a.example", "not-a-day", 1, 1)})
		assert.Equal(t, "not-a-day", p.Today)
		assert.Equal(t, "", p.Yesterday)
		assert.Len(t, p.TodaySet, 1)
		assert.Empty(t, p.YesterdaySet)
	})

	t.Run("baseline matches by domain not name", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			{SiteName: "Tracker", Domain: "one.example", Day: "2024-01-01", Upload: 10},
			{SiteName: "Tracker", Domain: "two.example", Day: "2024-01-01", Upload: 20},
			{SiteName: "Tracker", Domain: "two.example", Day: "2024-01-02", Upload: 25},
		})
		require.Len(t, p.TodaySet, 1)
		base := p.Baseline(p.TodaySet[0])
		require.NotNil(t, base)
		assert.Equal(t, int64(20), base.Upload)
	})
}

func TestPlanFillForward(t *testing.T) {
	t.Parallel()

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, PlanFillForward(nil))
	})

	t.Run("copies newest record of lagging sites", func(t *testing.T) {
		t.Parallel()
		in := []UsageSnapshot{
			snap("a.example", "2024-01-01", 10, 1),
			snap("b.example", "2024-01-01", 20, 2),
			snap("b.example", "2023-12-31", 15, 2),
			snap("a.example", "2024-01-02", 12, 1),
			snap("c.example", "2023-12-25", 99, 9),
		}
		in[1].Extra = map[string]any{"hr": 3}

		out := PlanFillForward(in)
		require.Len(t, out, 2)

		assert.Equal(t, "b.example", out[0].Domain)
		assert.Equal(t, "2024-01-02", out[0].Day)
		assert.Equal(t, int64(20), out[0].Upload)
		assert.Equal(t, 3, out[0].Extra["hr"])

		assert.Equal(t, "c.example", out[1].Domain)
		assert.Equal(t, "2024-01-02", out[1].Day)
		assert.Equal(t, int64(99), out[1].Upload)

		// input is left untouched
		assert.Equal(t, "2024-01-01", in[1].Day)
		out[0].Extra["hr"] = 4
		assert.Equal(t, 3, in[1].Extra["hr"])
	})

	t.Run("nothing to do when every site is current", func(t *testing.T) {
		t.Parallel()
		out := PlanFillForward([]UsageSnapshot{
			snap("a.example", "2024-01-02", 1, 1),
			snap("b.example", "2024-01-02", 2, 2),
		})
		assert.Empty(t, out)
	})
}
