// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the signed-in operator's credentials.
//
// A Store owns the current Record, persists it to a JSON file so separate
// shopdesk invocations share one sign-in, and tells subscribers whenever the
// store becomes authenticated or unauthenticated. Watch picks up a logout
// performed by another process (the session file disappears).
//
// Subscribers are always called outside the store's lock, so they may call
// back into the Store or into a guard that queries it.
package session
