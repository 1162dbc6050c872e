// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autobrr/sitestats/internal/dbinterface"
)

var ErrNotificationTargetNotFound = errors.New("notification target not found")

// NotificationKind selects how a target is delivered.
type NotificationKind string

const (
	// NotificationKindShoutrrr sends through a shoutrrr service URL.
	NotificationKindShoutrrr NotificationKind = "shoutrrr"
	// NotificationKindWebhook posts {"text","image"} JSON to <url>/<subPath>/<apiKey>.
	NotificationKindWebhook NotificationKind = "webhook"

	DefaultWebhookSubPath = "hooks"
)

// ParseNotificationKind defaults an empty kind to shoutrrr.
func ParseNotificationKind(raw string) (NotificationKind, error) {
	switch NotificationKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", NotificationKindShoutrrr:
		return NotificationKindShoutrrr, nil
	case NotificationKindWebhook:
		return NotificationKindWebhook, nil
	default:
		return "", ErrInvalidNotificationKind
	}
}

// NotificationTarget represents a configured notification destination.
type NotificationTarget struct {
	ID             int              `json:"id"`
	Name           string           `json:"name"`
	Kind           NotificationKind `json:"kind"`
	URL            string           `json:"url"`
	Enabled        bool             `json:"enabled"`
	EventTypes     []string         `json:"eventTypes"`
	APIKey         string           `json:"apiKey,omitempty"`
	SubPath        string           `json:"subPath,omitempty"`
	MarkdownBreaks bool             `json:"markdownBreaks"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// NotificationTargetCreate represents data needed to create a notification target.
type NotificationTargetCreate struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	URL            string   `json:"url"`
	Enabled        bool     `json:"enabled"`
	EventTypes     []string `json:"eventTypes"`
	APIKey         string   `json:"apiKey"`
	SubPath        string   `json:"subPath"`
	MarkdownBreaks bool     `json:"markdownBreaks"`
}

// NotificationTargetUpdate represents data needed to update a notification target.
type NotificationTargetUpdate = NotificationTargetCreate

// NotificationTargetStore manages persistence for notification targets.
type NotificationTargetStore struct {
	db dbinterface.Querier
}

func NewNotificationTargetStore(db dbinterface.Querier) *NotificationTargetStore {
	return &NotificationTargetStore{db: db}
}

const notificationTargetColumns = `id, name, kind, url, enabled, event_types, api_key, sub_path, markdown_breaks, created_at, updated_at`

func (s *NotificationTargetStore) List(ctx context.Context) ([]*NotificationTarget, error) {
	return s.list(ctx, `SELECT `+notificationTargetColumns+` FROM notification_targets ORDER BY name ASC`)
}

func (s *NotificationTargetStore) ListEnabled(ctx context.Context) ([]*NotificationTarget, error) {
	return s.list(ctx, `SELECT `+notificationTargetColumns+` FROM notification_targets WHERE enabled = 1 ORDER BY name ASC`)
}

func (s *NotificationTargetStore) list(ctx context.Context, query string) ([]*NotificationTarget, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query notification targets: %w", err)
	}
	defer rows.Close()

	var targets []*NotificationTarget
	for rows.Next() {
		target, err := scanNotificationTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification targets: %w", err)
	}

	return targets, nil
}

func (s *NotificationTargetStore) GetByID(ctx context.Context, id int) (*NotificationTarget, error) {
	query := `SELECT ` + notificationTargetColumns + ` FROM notification_targets WHERE id = ?`
	return scanNotificationTarget(s.db.QueryRowContext(ctx, query, id))
}

func (s *NotificationTargetStore) Create(ctx context.Context, create *NotificationTargetCreate) (*NotificationTarget, error) {
	if create == nil {
		return nil, errors.New("create payload required")
	}

	args, err := targetArgs(create)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO notification_targets (name, kind, url, enabled, event_types, api_key, sub_path, markdown_breaks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING ` + notificationTargetColumns

	target, err := scanNotificationTarget(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translateTargetError(err)
	}
	return target, nil
}

func (s *NotificationTargetStore) Update(ctx context.Context, id int, update *NotificationTargetUpdate) (*NotificationTarget, error) {
	if update == nil {
		return nil, errors.New("update payload required")
	}

	args, err := targetArgs(update)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE notification_targets
		SET name = ?, kind = ?, url = ?, enabled = ?, event_types = ?, api_key = ?, sub_path = ?, markdown_breaks = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, translateTargetError(fmt.Errorf("update notification target: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotificationTargetNotFound
	}

	return s.GetByID(ctx, id)
}

func (s *NotificationTargetStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notification_targets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete notification target: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotificationTargetNotFound
	}

	return nil
}

func targetArgs(in *NotificationTargetCreate) ([]any, error) {
	kind, err := ParseNotificationKind(in.Kind)
	if err != nil {
		return nil, err
	}

	eventTypesJSON, err := json.Marshal(in.EventTypes)
	if err != nil {
		return nil, fmt.Errorf("marshal event types: %w", err)
	}
	if in.EventTypes == nil {
		eventTypesJSON = []byte("[]")
	}

	subPath := strings.Trim(strings.TrimSpace(in.SubPath), "/")
	if subPath == "" {
		subPath = DefaultWebhookSubPath
	}

	return []any{
		strings.TrimSpace(in.Name),
		string(kind),
		strings.TrimSpace(in.URL),
		boolToInt(in.Enabled),
		string(eventTypesJSON),
		strings.TrimSpace(in.APIKey),
		subPath,
		boolToInt(in.MarkdownBreaks),
	}, nil
}

func translateTargetError(err error) error {
	switch {
	case isUniqueConstraintError(err):
		return ErrNotificationTargetExists
	case isCheckConstraintError(err):
		return ErrInvalidNotificationKind
	default:
		return err
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanNotificationTarget(scanner interface{ Scan(dest ...any) error }) (*NotificationTarget, error) {
	var target NotificationTarget
	var kind string
	var enabled, breaks int
	var eventTypesJSON string

	if err := scanner.Scan(
		&target.ID,
		&target.Name,
		&kind,
		&target.URL,
		&enabled,
		&eventTypesJSON,
		&target.APIKey,
		&target.SubPath,
		&breaks,
		&target.CreatedAt,
		&target.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationTargetNotFound
		}
		return nil, fmt.Errorf("scan notification target: %w", err)
	}

	target.Kind = NotificationKind(kind)
	target.Enabled = enabled == 1
	target.MarkdownBreaks = breaks == 1
	if err := unmarshalEventTypes(eventTypesJSON, &target.EventTypes); err != nil {
		return nil, err
	}

	return &target, nil
}

func unmarshalEventTypes(raw string, dest *[]string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "[]" {
		*dest = nil
		return nil
	}

	if err := json.Unmarshal([]byte(trimmed), dest); err != nil {
		return fmt.Errorf("unmarshal event types: %w", err)
	}

	return nil
}
