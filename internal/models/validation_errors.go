// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "errors"

var (
	// ErrNotificationTargetExists is returned when another target already uses the name.
	ErrNotificationTargetExists = errors.New("notification target name already in use")
	// ErrInvalidNotificationKind is returned for kinds other than shoutrrr and webhook.
	ErrInvalidNotificationKind = errors.New("notification kind must be shoutrrr or webhook")
)
