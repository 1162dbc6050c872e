// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/sitestats/internal/database"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/internal/sitestats"
)

func setupModelsTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func siteRow(domain, day string, upload, download int64) *models.SiteUserData {
	return &models.SiteUserData{
		UsageSnapshot: sitestats.UsageSnapshot{
			SiteName: domain,
			Domain:   domain,
			Day:      day,
			Upload:   upload,
			Download: download,
		},
	}
}

func TestSiteUserData_Validate(t *testing.T) {
	tests := []struct {
		name string
		data *models.SiteUserData
		ok   bool
	}{
		{name: "nil", data: nil},
		{name: "missing domain", data: siteRow(" ", "2024-01-02", 1, 1)},
		{name: "bad day", data: siteRow("a.example", "02/01/2024", 1, 1)},
		{name: "negative upload", data: siteRow("a.example", "2024-01-02", -1, 1)},
		{name: "valid", data: siteRow("a.example", "2024-01-02", 1, 1), ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, models.ErrInvalidSiteUserData)
		})
	}
}

func TestSiteUserDataStore_InsertAndList(t *testing.T) {
	db := setupModelsTestDB(t)
	store := models.NewSiteUserDataStore(db)
	ctx := context.Background()

	rows, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	first := siteRow("a.example", "2024-01-01", 100, 50)
	first.SiteName = ""
	first.Username = "alice"
	first.Ratio = 2
	first.Bonus = 1234.5
	first.Extra = map[string]any{"hnr": 3, "note": "vip"}

	created, err := store.Insert(ctx, first)
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, "a.example", created.SiteName, "name falls back to domain")
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, int64(3), created.Extra["hnr"])
	assert.Equal(t, "vip", created.Extra["note"])
	assert.False(t, created.CreatedAt.IsZero())

	_, err = store.Insert(ctx, siteRow("b.example", "2024-01-02", 10, 0))
	require.NoError(t, err)
	_, err = store.Insert(ctx, siteRow("a.example", "2024-01-02", 130, 60))
	require.NoError(t, err)

	rows, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-01", rows[0].Day)
	assert.Equal(t, "b.example", rows[1].Domain)

	since, err := store.ListSince(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.Len(t, since, 2)

	byDomain, err := store.ListByDomain(ctx, "a.example")
	require.NoError(t, err)
	require.Len(t, byDomain, 2)
	assert.Equal(t, "2024-01-02", byDomain[0].Day)

	snaps, err := store.Snapshots(ctx)
	require.NoError(t, err)
	p := sitestats.NewPartition(snaps)
	assert.Equal(t, "2024-01-02", p.Today)
	assert.Len(t, p.TodaySet, 2)
}

func TestSiteUserDataStore_InsertRejectsInvalid(t *testing.T) {
	db := setupModelsTestDB(t)
	store := models.NewSiteUserDataStore(db)

	_, err := store.Insert(context.Background(), siteRow("", "2024-01-02", 1, 1))
	require.ErrorIs(t, err, models.ErrInvalidSiteUserData)
}

func TestSiteUserDataStore_Upsert(t *testing.T) {
	db := setupModelsTestDB(t)
	store := models.NewSiteUserDataStore(db)
	ctx := context.Background()

	created, err := store.Upsert(ctx, siteRow("a.example", "2024-01-02", 100, 1))
	require.NoError(t, err)

	updated, err := store.Upsert(ctx, siteRow("a.example", "2024-01-02", 250, 2))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(250), updated.Upload)

	other, err := store.Upsert(ctx, siteRow("a.example", "2024-01-03", 300, 2))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)

	rows, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSiteUserDataStore_GetMissing(t *testing.T) {
	db := setupModelsTestDB(t)
	store := models.NewSiteUserDataStore(db)

	_, err := store.Get(context.Background(), 42)
	require.ErrorIs(t, err, models.ErrSnapshotNotFound)
}

func TestSiteUserDataStore_Delete(t *testing.T) {
	db := setupModelsTestDB(t)
	store := models.NewSiteUserDataStore(db)
	ctx := context.Background()

	for _, row := range []*models.SiteUserData{
		siteRow("a.example", "2024-01-01", 1, 1),
		siteRow("a.example", "2024-01-02", 2, 2),
		siteRow("b.example", "2024-01-02", 3, 3),
	} {
		_, err := store.Insert(ctx, row)
		require.NoError(t, err)
	}

	pruned, err := store.DeleteBefore(ctx, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	removed, err := store.DeleteDomain(ctx, "b.example")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a.example", rows[0].Domain)
}
