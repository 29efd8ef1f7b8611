// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shopdesk/internal/menu"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleOrder() menu.Order {
	return menu.Order{Categories: []menu.CategoryOrder{
		{ID: "rings", Products: []string{"p2", "p1"}},
		{ID: "watches", Products: []string{"w1"}},
	}}
}

func TestDraftRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	saved := time.UnixMilli(1_700_000_000_000)
	db.now = func() time.Time { return saved }

	_, ok, err := db.LoadDraft(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SaveDraft(ctx, "u1", sampleOrder()))
	draft, ok, err := db.LoadDraft(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleOrder(), draft.Order)
	assert.True(t, draft.SavedAt.Equal(saved))

	_, ok, err = db.LoadDraft(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok, "drafts are per user")
}

func TestSaveDraftReplaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.SaveDraft(ctx, "u1", sampleOrder()))
	next := menu.Order{Categories: []menu.CategoryOrder{{ID: "watches", Products: []string{"w1"}}}}
	require.NoError(t, db.SaveDraft(ctx, "u1", next))

	draft, ok, err := db.LoadDraft(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, draft.Order)
}

func TestDeleteDraft(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.SaveDraft(ctx, "u1", sampleOrder()))
	require.NoError(t, db.DeleteDraft(ctx, "u1"))
	require.NoError(t, db.DeleteDraft(ctx, "u1"))

	_, ok, err := db.LoadDraft(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDraftPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "drafts.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.SaveDraft(ctx, "u1", sampleOrder()))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	draft, ok, err := db.LoadDraft(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleOrder(), draft.Order)
}

func TestDraftRequiresUser(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	assert.ErrorIs(t, db.SaveDraft(ctx, "", sampleOrder()), ErrNoUser)
	_, _, err := db.LoadDraft(ctx, "")
	assert.ErrorIs(t, err, ErrNoUser)
	assert.ErrorIs(t, db.DeleteDraft(ctx, ""), ErrNoUser)
}
