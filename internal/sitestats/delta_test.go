// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelta(t *testing.T) {
	t.Parallel()

	t.Run("increase since yesterday", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			snap("a.example", "2024-01-01", 100, 50),
			snap("a.example", "2024-01-02", 130, 50),
		})
		require.Equal(t, "2024-01-02", p.Today)

		d := ComputeDelta(p.TodaySet[0], p.Baseline(p.TodaySet[0]))
		assert.Equal(t, int64(30), d.Upload())
		assert.Equal(t, int64(0), d.Download())
		assert.True(t, d.Has(FieldDownload))
	})

	t.Run("identical records give zero everywhere", func(t *testing.T) {
		t.Parallel()
		today := UsageSnapshot{
			Domain: "a.example", Day: "2024-01-02",
			Upload: 10, Download: 20, SeedingCount: 30, SeedingSize: 40, Ratio: 1.5, Bonus: 1234.5,
			Extra: map[string]any{"hnr": "7"},
		}
		yesterday := today
		yesterday.Day = "2024-01-01"

		d := ComputeDelta(today, &yesterday)
		require.NotEmpty(t, d)
		for field, v := range d {
			assert.Zero(t, v, field)
		}
		assert.True(t, d.Has("hnr"))
	})

	t.Run("counter reset clamps to zero", func(t *testing.T) {
		t.Parallel()
		today := UsageSnapshot{Domain: "a.example", Upload: 5, Download: 3, SeedingCount: 1}
		yesterday := UsageSnapshot{Domain: "a.example", Upload: 100, Download: 1, SeedingCount: 9}

		d := ComputeDelta(today, &yesterday)
		assert.Equal(t, int64(0), d.Upload())
		assert.Equal(t, int64(2), d.Download())
		assert.Equal(t, int64(0), d[FieldSeeding])
		for field, v := range d {
			assert.GreaterOrEqual(t, v, int64(0), field)
		}
	})

	t.Run("missing baseline passes today through", func(t *testing.T) {
		t.Parallel()
		p := NewPartition([]UsageSnapshot{
			{Domain: "b.example", Day: "2024-01-02", Upload: 777, Download: 42, SeedingCount: 3, SeedingSize: 9000},
		})
		b := p.TodaySet[0]
		require.Nil(t, p.Baseline(b))

		d := ComputeDelta(b, nil)
		assert.Equal(t, b.Upload, d.Upload())
		assert.Equal(t, b.Download, d.Download())
		assert.Equal(t, b.SeedingCount, d[FieldSeeding])
		assert.Equal(t, b.SeedingSize, d[FieldSeedingSize])
	})

	t.Run("zero baseline gives the same numbers through subtraction", func(t *testing.T) {
		t.Parallel()
		today := UsageSnapshot{Domain: "b.example", Upload: 777, Download: 42}
		zero := UsageSnapshot{Domain: "b.example"}

		withZero := ComputeDelta(today, &zero)
		withNone := ComputeDelta(today, nil)
		assert.Equal(t, withNone.Upload(), withZero.Upload())
		assert.Equal(t, withNone.Download(), withZero.Download())
	})

	t.Run("non numeric fields are omitted", func(t *testing.T) {
		t.Parallel()
		today := UsageSnapshot{
			Domain: "a.example", Username: "alice", UserLevel: "Elite", Upload: 10,
			Extra: map[string]any{"hnr": "3", "note": "1.5", "tags": []string{"x"}, "nil": nil, "only_today": 4},
		}
		yesterday := UsageSnapshot{
			Domain: "a.example", Username: "alice", UserLevel: "Power", Upload: 4,
			Extra: map[string]any{"hnr": "1", "note": "1.0", "tags": []string{"y"}, "nil": nil},
		}

		d := ComputeDelta(today, &yesterday)
		assert.Equal(t, int64(6), d.Upload())
		assert.Equal(t, int64(2), d["hnr"])
		for _, field := range []string{FieldUsername, FieldUserLevel, "note", "tags", "nil", "only_today"} {
			assert.False(t, d.Has(field), field)
		}
	})

	t.Run("non numeric fields are omitted without baseline", func(t *testing.T) {
		t.Parallel()
		d := ComputeDelta(UsageSnapshot{Username: "bob", Upload: 1}, nil)
		assert.False(t, d.Has(FieldUsername))
		assert.True(t, d.Has(FieldUpload))
	})

	t.Run("floats are truncated", func(t *testing.T) {
		t.Parallel()
		today := UsageSnapshot{Bonus: 10.9}
		yesterday := UsageSnapshot{Bonus: 2.2}
		d := ComputeDelta(today, &yesterday)
		assert.Equal(t, int64(8), d[FieldBonus])
	})
}

func TestNumericValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    any
		want  int64
		valid bool
	}{
		{name: "int", in: 5, want: 5, valid: true},
		{name: "int64", in: int64(-3), want: -3, valid: true},
		{name: "uint64 overflow", in: uint64(math.MaxUint64), want: math.MaxInt64, valid: true},
		{name: "float", in: 2.9, want: 2, valid: true},
		{name: "float32", in: float32(1.5), want: 1, valid: true},
		{name: "digit string", in: "0042", want: 42, valid: true},
		{name: "huge digit string", in: "99999999999999999999", want: math.MaxInt64, valid: true},
		{name: "empty string", in: "", valid: false},
		{name: "signed string", in: "-1", valid: false},
		{name: "decimal string", in: "1.5", valid: false},
		{name: "non ascii digits", in: "١٢", valid: false},
		{name: "nan", in: math.NaN(), valid: false},
		{name: "inf", in: math.Inf(1), valid: false},
		{name: "nil", in: nil, valid: false},
		{name: "bool", in: true, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := numericValue(tt.in)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
