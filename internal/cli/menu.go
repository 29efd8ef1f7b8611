// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/shopdesk/internal/menu"
)

func newMenuCommand(opts *options) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Print the quick shopping order as the console would show it",
		Long: `Fetch the catalog and the saved quick shopping order, reconcile them and
print the result. New categories and products appear at the end of their
list; anything no longer in the catalog is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.requireSession(); err != nil {
				return err
			}

			cat, err := e.client.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			order, err := e.client.QuickShopOrder(cmd.Context())
			if err != nil {
				return err
			}

			layout, report := menu.Reconcile(order, cat)
			doc := renderMarkdown(layout, report)
			if plain {
				fmt.Fprint(cmd.OutOrStdout(), doc)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTerminal(doc))
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print markdown without terminal styling")
	return cmd
}

// renderMarkdown writes the layout as a markdown document.
func renderMarkdown(l menu.Layout, r menu.Report) string {
	var b strings.Builder
	b.WriteString("# Quick shopping order\n\n")
	fmt.Fprintf(&b, "_%d categories, %d products_\n\n", len(l.Sections), l.ProductCount())

	if r.Changed() {
		b.WriteString("> The catalog changed since the order was last saved.\n")
		writeList(&b, "New categories", r.AddedCategories)
		writeList(&b, "New products", r.AddedProducts)
		writeList(&b, "Removed categories", r.MissingCategories)
		writeList(&b, "Removed products", r.MissingProducts)
		b.WriteString("\n")
	}

	for _, s := range l.Sections {
		fmt.Fprintf(&b, "## %s\n\n", escapeMarkdown(s.Category.Name))
		if len(s.Products) == 0 {
			b.WriteString("_no products_\n\n")
			continue
		}
		for i, p := range s.Products {
			fmt.Fprintf(&b, "%d. %s - %.2f\n", i+1, escapeMarkdown(p.Name), p.Price)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(b, "> %s: %s\n", label, strings.Join(ids, ", "))
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `#`, `\#`, `[`, `\[`, `]`, `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// renderTerminal styles doc with glamour, falling back to the raw markdown.
func renderTerminal(doc string) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 40 {
		width = w
	}

	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return out
}
