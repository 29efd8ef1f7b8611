// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps unsaved quick shopping arrangements on disk.
//
// When the idle guard signs an operator out mid-edit, the app writes the
// current arrangement as a draft keyed by user ID. After the next sign-in the
// draft is loaded, reconciled against the live catalog and offered for
// saving.
//
// # Usage
//
//	db, err := storage.Open(ctx, path)
//	defer db.Close()
//	err = db.SaveDraft(ctx, user.ID, layout.Order())
//	draft, ok, err := db.LoadDraft(ctx, user.ID)
package storage
