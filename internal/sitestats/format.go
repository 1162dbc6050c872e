// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sitestats

import (
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// FormatSize renders a byte count with binary units, e.g. "1.5 GiB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

// FormatBonus renders a bonus balance with one decimal and separators.
func FormatBonus(bonus float64) string {
	return numberPrinter.Sprintf("%.1f", bonus)
}
