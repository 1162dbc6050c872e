// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Totals{}, ComputeTotals(nil))

	records := []UsageSnapshot{
		{Upload: 10, Download: 1, SeedingCount: 3, SeedingSize: 100},
		{Upload: 20, Download: 2, SeedingCount: 4, SeedingSize: 200},
		{Upload: 30, Download: 3, SeedingCount: 5, SeedingSize: 300},
	}
	got := ComputeTotals(records)
	assert.Equal(t, Totals{Upload: 60, Download: 6, SeedingCount: 12, SeedingSize: 600}, got)

	var sum Totals
	for _, r := range records {
		part := ComputeTotals([]UsageSnapshot{r})
		sum.Upload += part.Upload
		sum.Download += part.Download
		sum.SeedingCount += part.SeedingCount
		sum.SeedingSize += part.SeedingSize
	}
	assert.Equal(t, got, sum)
}

func TestParseNotifyMode(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]NotifyMode{"": NotifyDisabled, "inc": NotifyIncrement, " ALL ": NotifyCumulative} {
		got, err := ParseNotifyMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseNotifyMode("weekly")
	require.Error(t, err)
}

func TestBuildDigest(t *testing.T) {
	t.Parallel()

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		d := BuildDigest(NewPartition(nil), DigestOptions{Mode: NotifyIncrement})
		assert.True(t, d.Empty())
		assert.Empty(t, d.Blocks())
		assert.Equal(t, "", d.Text())
	})

	t.Run("keeps moving sites ordered by upload", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("idle.example", "2024-01-01", 500, 500),
			snap("idle.example", "2024-01-02", 500, 500),
			snap("up.example", "2024-01-01", 100, 0),
			snap("up.example", "2024-01-02", 400, 0),
			snap("down.example", "2024-01-01", 0, 0),
			snap("down.example", "2024-01-02", 0, 70),
			snap("new.example", "2024-01-02", 200, 10),
		})

		d := BuildDigest(p, DigestOptions{Mode: NotifyIncrement})
		require.Len(t, d.Sites, 3)
		assert.Equal(t, "up.example", d.Sites[0].Site)
		assert.Equal(t, int64(300), d.Sites[0].Upload)
		assert.Equal(t, "new.example", d.Sites[1].Site)
		assert.Equal(t, int64(200), d.Sites[1].Upload)
		assert.Equal(t, "down.example", d.Sites[2].Site)
		assert.Equal(t, int64(70), d.Sites[2].Download)

		assert.Equal(t, int64(500), d.TotalUpload)
		assert.Equal(t, int64(80), d.TotalDownload)

		for _, s := range d.Sites {
			assert.NotEqual(t, "idle.example", s.Site)
		}
		for i := 1; i < len(d.Sites); i++ {
			assert.GreaterOrEqual(t, d.Sites[i-1].Upload, d.Sites[i].Upload)
		}
	})

	t.Run("equal uploads keep enumeration order", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("first.example", "2024-01-02", 100, 1),
			snap("second.example", "2024-01-02", 100, 2),
			snap("third.example", "2024-01-02", 100, 3),
		})
		d := BuildDigest(p, DigestOptions{Mode: NotifyIncrement})
		require.Len(t, d.Sites, 3)
		assert.Equal(t, "first.example", d.Sites[0].Site)
		assert.Equal(t, "second.example", d.Sites[1].Site)
		assert.Equal(t, "third.example", d.Sites[2].Site)
	})

	t.Run("cumulative mode reports raw values", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("a.example", "2024-01-01", 100, 50),
			snap("a.example", "2024-01-02", 100, 50),
		})
		inc := BuildDigest(p, DigestOptions{Mode: NotifyIncrement})
		assert.True(t, inc.Empty())

		all := BuildDigest(p, DigestOptions{Mode: NotifyCumulative})
		require.Len(t, all.Sites, 1)
		assert.Equal(t, int64(100), all.Sites[0].Upload)
		assert.Equal(t, NotifyCumulative, all.Mode)
	})

	t.Run("disabled mode falls back to increments", func(t *testing.T) {
		t.Parallel()
		d := BuildDigest(NewPartition([]UsageSnapshot{snap("a.example", "2024-01-02", 5, 0)}), DigestOptions{})
		assert.Equal(t, NotifyIncrement, d.Mode)
	})

	t.Run("stale sites are annotated", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{snap("a.example", "2024-01-02", 2048, 0)})

		fresh := BuildDigest(p, DigestOptions{Mode: NotifyIncrement})
		require.Len(t, fresh.Sites, 1)
		assert.False(t, fresh.Sites[0].Stale)
		assert.NotContains(t, fresh.Text(), "as of")

		stale := BuildDigest(p, DigestOptions{Mode: NotifyIncrement, ReferenceDay: "2024-01-03"})
		require.Len(t, stale.Sites, 1)
		assert.True(t, stale.Sites[0].Stale)
		assert.Contains(t, stale.Text(), "[a.example] (as of 2024-01-02)")
	})

	t.Run("summary block comes first", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("a.example", "2024-01-02", 2048, 0),
			snap("b.example", "2024-01-02", 1024, 30),
		})
		blocks := BuildDigest(p, DigestOptions{Mode: NotifyIncrement}).Blocks()
		require.Len(t, blocks, 3)
		assert.True(t, strings.HasPrefix(blocks[0], "[Summary]\nTotal upload: 3.0 KiB\nTotal download: 30 B"))
		assert.True(t, strings.HasPrefix(blocks[1], "[a.example]\nUpload: 2.0 KiB\nDownload: 0 B"))
		assert.True(t, strings.HasPrefix(blocks[2], "[b.example]\nUpload: 1.0 KiB\nDownload: 30 B"))
	})
}

func TestBuildChart(t *testing.T) {
	t.Parallel()

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		c := BuildChart(NewPartition(nil))
		assert.Empty(t, c.Upload.Labels)
		assert.Empty(t, c.Download.Labels)
		assert.Zero(t, c.Upload.Total)
	})

	t.Run("buckets independently", func(t *testing.T) {
		t.Parallel()
		const gib = int64(1 << 30)
		p := NewPartition([]UsageSnapshot{
			snap("both.example", "2024-01-01", 0, 0),
			snap("both.example", "2024-01-02", 3*gib, gib/2),
			snap("up.example", "2024-01-01", 0, 5*gib),
			snap("up.example", "2024-01-02", gib+gib/4, 5*gib),
			snap("none.example", "2024-01-01", gib, gib),
			snap("none.example", "2024-01-02", gib, gib),
			snap("down.example", "2024-01-01", 9*gib, 0),
			snap("down.example", "2024-01-02", 9*gib, 2*gib),
		})

		c := BuildChart(p)
		assert.Equal(t, "2024-01-02", c.Today)
		assert.Equal(t, []string{"both.example", "up.example"}, c.Upload.Labels)
		assert.Equal(t, []float64{3, 1.3}, c.Upload.Values)
		assert.InDelta(t, 4.3, c.Upload.Total, 1e-9)

		assert.ElementsMatch(t, []string{"both.example", "down.example"}, c.Download.Labels)
		assert.InDelta(t, 2.5, c.Download.Total, 1e-9)
	})
}

func TestGB(t *testing.T) {
	t.Parallel()

	assert.Zero(t, GB(0))
	assert.Equal(t, 1.0, GB(1<<30))
	assert.Equal(t, 0.1, GB(1<<30/10))
	assert.Equal(t, 2.5, GB(5<<29))
}

func TestFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "0 B", FormatSize(-5))
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}
