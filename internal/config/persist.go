// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"regexp"
	"strings"
)

var settingLinePattern = regexp.MustCompile(`^\s*#?\s*([A-Za-z]+)\s*=`)

// updateLogSettingsInTOML rewrites the top-level log keys in place,
// uncommenting them as needed. Keys not present are inserted before the
// first table header.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	values := map[string]string{
		"logLevel":      fmt.Sprintf("logLevel = %q", level),
		"logPath":       fmt.Sprintf("logPath = %q", path),
		"logMaxSize":    fmt.Sprintf("logMaxSize = %d", maxSize),
		"logMaxBackups": fmt.Sprintf("logMaxBackups = %d", maxBackups),
	}
	if path == "" {
		values["logPath"] = `#logPath = ""`
	}

	lines := strings.Split(content, "\n")
	firstTable := len(lines)
	seen := make(map[string]bool, len(values))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			firstTable = i
			break
		}

		m := settingLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		replacement, ok := values[m[1]]
		if !ok || seen[m[1]] {
			continue
		}
		lines[i] = replacement
		seen[m[1]] = true
	}

	var missing []string
	for _, key := range []string{"logLevel", "logPath", "logMaxSize", "logMaxBackups"} {
		if !seen[key] {
			missing = append(missing, values[key])
		}
	}
	if len(missing) == 0 {
		return strings.Join(lines, "\n")
	}

	block := append([]string{"# Log settings"}, missing...)
	block = append(block, "")

	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:firstTable]...)
	out = append(out, block...)
	out = append(out, lines[firstTable:]...)
	return strings.Join(out, "\n")
}
