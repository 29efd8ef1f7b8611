// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli defines the shopdesk command tree.
//
//	shopdesk            open the back-office console
//	shopdesk login      sign in without opening the console
//	shopdesk logout     sign out (any open console follows)
//	shopdesk status     show who is signed in and the idle timeout
//	shopdesk menu       print the reconciled quick shopping order
//	shopdesk version    print build information
//
// Every command accepts --config to point at a config.toml other than
// ~/.shopdesk/config.toml.
package cli
