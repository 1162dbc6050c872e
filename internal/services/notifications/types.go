// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"fmt"
	"strings"
)

type EventType string

const (
	EventSiteStatisticsDigest EventType = "site_statistics_digest"
	EventSiteRefreshFailed    EventType = "site_refresh_failed"
	EventFillForwardCompleted EventType = "fill_forward_completed"
	EventFillForwardFailed    EventType = "fill_forward_failed"
	// EventTest is only sent through SendTest and is never filtered.
	EventTest EventType = "test"
)

type EventDefinition struct {
	Type        EventType `json:"type"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
}

var eventDefinitions = []EventDefinition{
	{Type: EventSiteStatisticsDigest, Label: "Site statistics", Description: "The daily upload and download digest after all sites were refreshed."},
	{Type: EventSiteRefreshFailed, Label: "Site refresh failed", Description: "A recorded snapshot carries an error message from the site."},
	{Type: EventFillForwardCompleted, Label: "Fill-forward completed", Description: "Lagging sites were copied forward to the current day."},
	{Type: EventFillForwardFailed, Label: "Fill-forward failed", Description: "The fill-forward job could not complete."},
}

var eventTypeIndex = func() map[string]int {
	idx := make(map[string]int, len(eventDefinitions))
	for i, def := range eventDefinitions {
		idx[string(def.Type)] = i
	}
	return idx
}()

func EventDefinitions() []EventDefinition {
	out := make([]EventDefinition, len(eventDefinitions))
	copy(out, eventDefinitions)
	return out
}

func IsValidEventType(value string) bool {
	_, ok := eventTypeIndex[value]
	return ok
}

// NormalizeEventTypes validates and deduplicates input, returning the
// types in definition order. An empty result subscribes to everything.
func NormalizeEventTypes(input []string) ([]string, error) {
	if len(input) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(input))
	for _, raw := range input {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if !IsValidEventType(value) {
			return nil, fmt.Errorf("unknown event type: %s", value)
		}
		seen[value] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for _, def := range eventDefinitions {
		value := string(def.Type)
		if _, ok := seen[value]; ok {
			out = append(out, value)
		}
	}

	return out, nil
}
