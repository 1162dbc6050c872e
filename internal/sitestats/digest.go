// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// NotifyMode selects the values a digest reports.
type NotifyMode string

const (
	// NotifyDisabled turns the digest off.
	NotifyDisabled NotifyMode = ""
	// NotifyIncrement reports the increase since yesterday.
	NotifyIncrement NotifyMode = "inc"
	// NotifyCumulative reports the raw cumulative counters.
	NotifyCumulative NotifyMode = "all"
)

// ParseNotifyMode validates a configured notify mode.
func ParseNotifyMode(raw string) (NotifyMode, error) {
	switch mode := NotifyMode(strings.TrimSpace(strings.ToLower(raw))); mode {
	case NotifyDisabled, NotifyIncrement, NotifyCumulative:
		return mode, nil
	default:
		return NotifyDisabled, fmt.Errorf("unknown notify mode %q", raw)
	}
}

const digestDivider = "------------"

// Totals are plain sums over today's snapshots.
type Totals struct {
	Upload       int64 `json:"upload"`
	Download     int64 `json:"download"`
	SeedingCount int64 `json:"seeding"`
	SeedingSize  int64 `json:"seedingSize"`
}

// ComputeTotals sums the cumulative counters of records.
func ComputeTotals(records []UsageSnapshot) Totals {
	var t Totals
	for _, r := range records {
		t.Upload += r.Upload
		t.Download += r.Download
		t.SeedingCount += r.SeedingCount
		t.SeedingSize += r.SeedingSize
	}
	return t
}

// SiteDigest is one kept site of a digest.
type SiteDigest struct {
	Site     string `json:"site"`
	Domain   string `json:"domain"`
	Day      string `json:"day"`
	Stale    bool   `json:"stale"`
	Upload   int64  `json:"upload"`
	Download int64  `json:"download"`
}

// Digest is the ordered notification summary of one partition.
type Digest struct {
	Today         string       `json:"today"`
	Mode          NotifyMode   `json:"mode"`
	Sites         []SiteDigest `json:"sites"`
	TotalUpload   int64        `json:"totalUpload"`
	TotalDownload int64        `json:"totalDownload"`
}

// Empty reports whether no site moved.
func (d Digest) Empty() bool {
	return len(d.Sites) == 0
}

// DigestOptions controls BuildDigest.
type DigestOptions struct {
	Mode NotifyMode
	// ReferenceDay is the day the digest is produced for, usually the wall
	// clock date. Sites whose snapshot day differs are marked stale. Empty
	// means the partition's today.
	ReferenceDay string
}

// BuildDigest keeps every site of p.TodaySet with a positive upload or
// download and orders them by upload descending. Equal uploads keep the
// order of p.TodaySet.
func BuildDigest(p Partition, opts DigestOptions) Digest {
	mode := opts.Mode
	if mode == NotifyDisabled {
		mode = NotifyIncrement
	}

	d := Digest{Today: p.Today, Mode: mode, Sites: []SiteDigest{}}
	if p.Empty() {
		return d
	}

	reference := opts.ReferenceDay
	if reference == "" {
		reference = p.Today
	}

	for _, s := range p.TodaySet {
		upload, download := s.Upload, s.Download
		if mode == NotifyIncrement {
			delta := ComputeDelta(s, p.Baseline(s))
			upload, download = delta.Upload(), delta.Download()
		}
		if upload <= 0 && download <= 0 {
			continue
		}

		d.TotalUpload += upload
		d.TotalDownload += download
		d.Sites = append(d.Sites, SiteDigest{
			Site:     s.Label(),
			Domain:   s.Domain,
			Day:      s.Day,
			Stale:    s.Day != "" && s.Day != reference,
			Upload:   upload,
			Download: download,
		})
	}

	slices.SortStableFunc(d.Sites, func(a, b SiteDigest) int {
		switch {
		case a.Upload > b.Upload:
			return -1
		case a.Upload < b.Upload:
			return 1
		default:
			return 0
		}
	})

	return d
}

// Blocks renders the digest as message blocks, the summary first. An empty
// digest renders nothing.
func (d Digest) Blocks() []string {
	if d.Empty() {
		return nil
	}

	blocks := make([]string, 0, len(d.Sites)+1)
	blocks = append(blocks, strings.Join([]string{
		"[Summary]",
		"Total upload: " + FormatSize(d.TotalUpload),
		"Total download: " + FormatSize(d.TotalDownload),
		digestDivider,
	}, "\n"))

	for _, site := range d.Sites {
		header := fmt.Sprintf("[%s]", site.Site)
		if site.Stale {
			header += fmt.Sprintf(" (as of %s)", site.Day)
		}
		blocks = append(blocks, strings.Join([]string{
			header,
			"Upload: " + FormatSize(site.Upload),
			"Download: " + FormatSize(site.Download),
			digestDivider,
		}, "\n"))
	}

	return blocks
}

// Text joins Blocks into one message body.
func (d Digest) Text() string {
	return strings.Join(d.Blocks(), "\n")
}

// ChartSeries is one pie of the dashboard.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"series"`
	Total  float64   `json:"total"`
}

// Chart holds today's increments in GB.
type Chart struct {
	Today    string      `json:"today"`
	Upload   ChartSeries `json:"upload"`
	Download ChartSeries `json:"download"`
}

// BuildChart buckets sites with a positive upload increment and sites with a
// positive download increment independently. A site can be in either,
// both or neither series.
func BuildChart(p Partition) Chart {
	c := Chart{
		Today:    p.Today,
		Upload:   ChartSeries{Labels: []string{}, Values: []float64{}},
		Download: ChartSeries{Labels: []string{}, Values: []float64{}},
	}
	if p.Empty() {
		return c
	}

	for _, s := range p.TodaySet {
		delta := ComputeDelta(s, p.Baseline(s))
		if up := delta.Upload(); up > 0 {
			c.Upload.Labels = append(c.Upload.Labels, s.Label())
			c.Upload.Values = append(c.Upload.Values, GB(up))
		}
		if down := delta.Download(); down > 0 {
			c.Download.Labels = append(c.Download.Labels, s.Label())
			c.Download.Values = append(c.Download.Values, GB(down))
		}
	}

	c.Upload.Total = sumRounded(c.Upload.Values)
	c.Download.Total = sumRounded(c.Download.Values)

	return c
}

// GB converts bytes to GiB rounded to one decimal.
func GB(bytes int64) float64 {
	if bytes == 0 {
		return 0
	}
	return roundTo(float64(bytes)/1024/1024/1024, 1)
}

func sumRounded(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return roundTo(sum, 2)
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
