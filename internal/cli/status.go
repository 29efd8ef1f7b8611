// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and idle timeout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("shopdesk status"))

			if rec, ok := e.store.Current(); ok {
				field(out, "Signed in", SuccessStyle.Render(displayName(rec.User.Name, rec.User.ID)))
				if rec.User.Role != "" {
					field(out, "Role", rec.User.Role)
				}
				if !rec.IssuedAt.IsZero() {
					field(out, "Since", rec.IssuedAt.Local().Format(time.DateTime))
				}
			} else {
				field(out, "Signed in", DimStyle.Render("no"))
			}

			field(out, "API", e.cfg.API.BaseURL)
			field(out, "Idle timeout", e.cfg.Session.Timeout.Std().String())
			field(out, "Warning", e.cfg.Session.Warning.Std().String()+" before")
			field(out, "Session file", e.cfg.Session.Path)
			return nil
		},
	}
}

func field(w io.Writer, label, value string) {
	fmt.Fprintln(w, LabelStyle.Render(label)+value)
}
