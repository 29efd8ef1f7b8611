// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the shopdesk UI components.
//
//   - CountdownOverlay: the idle-session warning and expired boxes
//   - ToastManager: non-blocking corner notifications
//   - ChannelNotifier: the bridge from the session guard's timer goroutines
//     into the Bubble Tea event loop
package components
