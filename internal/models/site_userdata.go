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
	"github.com/autobrr/sitestats/internal/sitestats"
)

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidSiteUserData = errors.New("invalid site user data")
)

// SiteUserData is one stored snapshot row. Rows are append-only except for
// Upsert, so several rows can exist for one site and day; the latest id
// wins when the statistics are computed.
type SiteUserData struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedTime is the wall clock time the site was scraped, as reported
	// by the ingesting side.
	UpdatedTime string `json:"updatedTime,omitempty"`

	sitestats.UsageSnapshot
}

// Validate checks the fields required to store a snapshot.
func (d *SiteUserData) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidSiteUserData)
	}
	if strings.TrimSpace(d.Domain) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidSiteUserData)
	}
	if _, err := time.Parse(sitestats.DayLayout, d.Day); err != nil {
		return fmt.Errorf("%w: updatedDay must be YYYY-MM-DD", ErrInvalidSiteUserData)
	}
	if d.Upload < 0 || d.Download < 0 || d.SeedingCount < 0 || d.SeedingSize < 0 {
		return fmt.Errorf("%w: counters must not be negative", ErrInvalidSiteUserData)
	}
	return nil
}

// SiteUserDataStore persists site snapshots.
type SiteUserDataStore struct {
	db dbinterface.Querier
}

func NewSiteUserDataStore(db dbinterface.Querier) *SiteUserDataStore {
	return &SiteUserDataStore{db: db}
}

const siteUserDataColumns = `
	id, domain, name, userid, username, user_level, join_at,
	upload, download, ratio, bonus, seeding, seeding_size,
	leeching, leeching_size, message_unread, extra, err_msg,
	updated_day, updated_time, created_at`

// List returns every row in insertion order.
func (s *SiteUserDataStore) List(ctx context.Context) ([]*SiteUserData, error) {
	query := `SELECT ` + siteUserDataColumns + ` FROM site_userdata ORDER BY id ASC`
	return s.list(ctx, query)
}

// ListSince returns rows with updated_day >= day in insertion order.
func (s *SiteUserDataStore) ListSince(ctx context.Context, day string) ([]*SiteUserData, error) {
	query := `SELECT ` + siteUserDataColumns + ` FROM site_userdata WHERE updated_day >= ? ORDER BY id ASC`
	return s.list(ctx, query, day)
}

// ListByDomain returns the rows of one site, newest day first.
func (s *SiteUserDataStore) ListByDomain(ctx context.Context, domain string) ([]*SiteUserData, error) {
	query := `SELECT ` + siteUserDataColumns + ` FROM site_userdata WHERE domain = ? ORDER BY updated_day DESC, id DESC`
	return s.list(ctx, query, strings.TrimSpace(domain))
}

// Snapshots returns every stored row as a UsageSnapshot in insertion order.
func (s *SiteUserDataStore) Snapshots(ctx context.Context) ([]sitestats.UsageSnapshot, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]sitestats.UsageSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.UsageSnapshot)
	}
	return out, nil
}

// Insert appends a row.
func (s *SiteUserDataStore) Insert(ctx context.Context, data *SiteUserData) (*SiteUserData, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	extra, err := marshalExtra(data.Extra)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO site_userdata (
			domain, name, userid, username, user_level, join_at,
			upload, download, ratio, bonus, seeding, seeding_size,
			leeching, leeching_size, message_unread, extra, err_msg,
			updated_day, updated_time
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + siteUserDataColumns

	row := s.db.QueryRowContext(ctx, query, insertArgs(data, extra)...)
	return scanSiteUserData(row)
}

// Upsert replaces the newest row of (domain, day) or inserts one when the
// site has none for that day.
func (s *SiteUserDataStore) Upsert(ctx context.Context, data *SiteUserData) (*SiteUserData, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM site_userdata WHERE domain = ? AND updated_day = ? ORDER BY id DESC LIMIT 1`,
		strings.TrimSpace(data.Domain), data.Day,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return s.Insert(ctx, data)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup site user data: %w", err)
	}

	extra, err := marshalExtra(data.Extra)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE site_userdata
		SET domain = ?, name = ?, userid = ?, username = ?, user_level = ?, join_at = ?,
			upload = ?, download = ?, ratio = ?, bonus = ?, seeding = ?, seeding_size = ?,
			leeching = ?, leeching_size = ?, message_unread = ?, extra = ?, err_msg = ?,
			updated_day = ?, updated_time = ?
		WHERE id = ?
	`
	args := append(insertArgs(data, extra), id)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update site user data: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns one row by id.
func (s *SiteUserDataStore) Get(ctx context.Context, id int64) (*SiteUserData, error) {
	query := `SELECT ` + siteUserDataColumns + ` FROM site_userdata WHERE id = ?`
	return scanSiteUserData(s.db.QueryRowContext(ctx, query, id))
}

// DeleteDomain removes every row of a site.
func (s *SiteUserDataStore) DeleteDomain(ctx context.Context, domain string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM site_userdata WHERE domain = ?`, strings.TrimSpace(domain))
	if err != nil {
		return 0, fmt.Errorf("delete site user data: %w", err)
	}
	return result.RowsAffected()
}

// DeleteBefore removes rows older than day and returns how many went.
func (s *SiteUserDataStore) DeleteBefore(ctx context.Context, day string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM site_userdata WHERE updated_day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("prune site user data: %w", err)
	}
	return result.RowsAffected()
}

func (s *SiteUserDataStore) list(ctx context.Context, query string, args ...any) ([]*SiteUserData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query site user data: %w", err)
	}
	defer rows.Close()

	var out []*SiteUserData
	for rows.Next() {
		data, err := scanSiteUserData(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site user data: %w", err)
	}

	return out, nil
}

func insertArgs(d *SiteUserData, extra string) []any {
	name := strings.TrimSpace(d.SiteName)
	if name == "" {
		name = strings.TrimSpace(d.Domain)
	}
	return []any{
		strings.TrimSpace(d.Domain), name, d.UserID, d.Username, d.UserLevel, d.JoinAt,
		d.Upload, d.Download, d.Ratio, d.Bonus, d.SeedingCount, d.SeedingSize,
		d.Leeching, d.LeechingSize, d.MessageUnread, extra, d.ErrMsg,
		d.Day, d.UpdatedTime,
	}
}

func scanSiteUserData(scanner interface{ Scan(dest ...any) error }) (*SiteUserData, error) {
	var d SiteUserData
	var extra string

	if err := scanner.Scan(
		&d.ID, &d.Domain, &d.SiteName, &d.UserID, &d.Username, &d.UserLevel, &d.JoinAt,
		&d.Upload, &d.Download, &d.Ratio, &d.Bonus, &d.SeedingCount, &d.SeedingSize,
		&d.Leeching, &d.LeechingSize, &d.MessageUnread, &extra, &d.ErrMsg,
		&d.Day, &d.UpdatedTime, &d.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("scan site user data: %w", err)
	}

	if err := unmarshalExtra(extra, &d.Extra); err != nil {
		return nil, err
	}

	return &d, nil
}

func marshalExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("marshal extra fields: %w", err)
	}
	return string(raw), nil
}

func unmarshalExtra(raw string, dest *map[string]any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		*dest = nil
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("unmarshal extra fields: %w", err)
	}

	// json.Number is not understood by the delta calculator
	for k, v := range *dest {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			(*dest)[k] = i
		} else if f, err := n.Float64(); err == nil {
			(*dest)[k] = f
		}
	}

	return nil
}
