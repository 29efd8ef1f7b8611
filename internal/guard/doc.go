// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard implements the idle session guard.
//
// The guard watches for operator inactivity, shows a countdown during the
// final warning window and forces a logout once the idle timeout elapses.
//
// # States
//
//   - Idle: not armed (no authenticated session)
//   - Active: authenticated, warning and logout timers running
//   - Warning: countdown visible, logout pending
//   - LoggedOut: the session was terminated for inactivity
//
// # Usage
//
//	g, err := guard.New(guard.DefaultConfig(), store, notifier)
//	if err != nil {
//	    return err
//	}
//	g.Start()      // after login
//	g.ResetTimer() // on every activity signal
//	g.Stop()       // on logout or shutdown
//
// The warning timer fires at Timeout-Warning and the logout timer at Timeout,
// both measured from the latest reset. The two are always armed and cancelled
// together.
package guard
