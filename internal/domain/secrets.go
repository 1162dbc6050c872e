// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RedactedStr replaces secrets in API responses. A client sending it back
// means "keep the stored value".
const RedactedStr = "<redacted>"

func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

func IsRedactedString(s string) bool {
	return s == RedactedStr
}
