// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags.
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "shopdesk",
		Short: "Terminal back office for the shop admin API",
		Long: `shopdesk signs you in to the shop back office and lets you arrange the
quick shopping menu from the terminal.

Idle sessions are signed out automatically. A countdown appears shortly
before the timeout; any key or mouse input keeps the session alive.

Configuration is read from ~/.shopdesk/config.toml. SHOPDESK_API_URL,
SHOPDESK_SESSION_TIMEOUT, SHOPDESK_SESSION_WARNING and SHOPDESK_LOG_LEVEL
override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ~/.shopdesk/config.toml)")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newStatusCommand(opts),
		newMenuCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
