// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCommand(opts *options) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the back office",
		Long: `Sign in and store the session in ~/.shopdesk/session.json. Open consoles
pick the new session up automatically. The password is read without echo;
when stdin is not a terminal it is read as a line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if strings.TrimSpace(username) == "" {
				if username, err = p.line("Username: "); err != nil {
					return err
				}
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}

			if err := e.store.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			rec, _ := e.store.Current()
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Signed in")+" as "+displayName(rec.User.Name, rec.User.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username (prompted when omitted)")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			if !e.store.IsAuthenticated() {
				fmt.Fprintln(out, DimStyle.Render("Not signed in"))
				return nil
			}
			if err := e.store.Logout(); err != nil {
				fmt.Fprintln(out, WarningStyle.Render("Signed out locally; the server was not notified: ")+err.Error())
				return nil
			}
			fmt.Fprintln(out, SuccessStyle.Render("Signed out"))
			return nil
		},
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
