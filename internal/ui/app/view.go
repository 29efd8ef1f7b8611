// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/shopdesk/internal/ui/components"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.overlay.IsVisible() {
		return m.overlay.View()
	}

	var body string
	if m.screen == screenLogin {
		body = m.viewLogin()
	} else {
		body = m.viewMenu()
	}

	if toasts := m.toasts.Toasts(); len(toasts) > 0 {
		stack := components.RenderToasts(toasts, 0, 0)
		if m.width > 0 {
			stack = lipgloss.PlaceHorizontal(m.width, lipgloss.Right, stack)
		}
		body = lipgloss.JoinVertical(lipgloss.Left, body, stack)
	}
	return m.theme.Frame.Render(body)
}

func (m Model) viewLogin() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Title.Render("shopdesk"))
	b.WriteString("\n")
	b.WriteString(t.Subtitle.Render("Back office sign in"))
	b.WriteString("\n\n")
	b.WriteString(t.Label.Render("User") + m.username.View())
	b.WriteString("\n")
	b.WriteString(t.Label.Render("Password") + m.password.View())
	b.WriteString("\n\n")

	switch {
	case m.busy:
		b.WriteString(t.Help.Render("Signing in..."))
	case m.loginErr != "":
		b.WriteString(t.FieldError.Render(m.loginErr))
	default:
		b.WriteString(t.Help.Render("enter sign in - tab switch field - esc quit"))
	}

	box := t.LoginBox.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width-4, m.height-4, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}

func (m Model) viewMenu() string {
	t := m.theme
	var b strings.Builder

	title := "Quick shopping order"
	if m.user.Name != "" {
		title += " - " + m.user.Name
	}
	b.WriteString(t.Title.Render(title))
	if m.dirty {
		b.WriteString(" " + t.Dirty.Render("[modified]"))
	}
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(t.Help.Render("Loading catalog..."))
		b.WriteString("\n")
	case len(m.layout.Sections) == 0:
		b.WriteString(t.Help.Render("The catalog has no categories yet."))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewRows())
	}

	status := fmt.Sprintf("%d categories, %d products", len(m.layout.Sections), m.layout.ProductCount())
	if m.saving {
		status += " - saving..."
	}
	help := "j/k move - J/K reorder - ctrl+s save - r reload - ctrl+l sign out - q quit"
	b.WriteString("\n")
	b.WriteString(t.StatusBar.Render(status + "\n" + help))
	return b.String()
}

// viewRows renders the visible window of rows around the cursor.
func (m Model) viewRows() string {
	t := m.theme
	rows := m.rows()

	nameWidth := 40
	if m.width > 0 {
		nameWidth = max(m.width-24, 12)
	}

	start, end := 0, len(rows)
	if visible := m.height - 10; m.height > 0 && visible > 0 && len(rows) > visible {
		start = min(max(m.cursor-visible/2, 0), len(rows)-visible)
		end = start + visible
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		r := rows[i]
		sec := m.layout.Sections[r.section]
		selected := i == m.cursor

		var line string
		if r.product < 0 {
			name := runewidth.Truncate(sec.Category.Name, nameWidth, "…")
			line = fmt.Sprintf("%s (%d)", name, len(sec.Products))
			if selected {
				line = t.CategoryRowSelected.Render("> " + line)
			} else {
				line = t.CategoryRow.Render("  " + line)
			}
		} else {
			p := sec.Products[r.product]
			name := runewidth.FillRight(runewidth.Truncate(p.Name, nameWidth, "…"), nameWidth)
			price := t.Price.Render(fmt.Sprintf("%10.2f", p.Price))
			if selected {
				line = t.ProductRowSelected.Render("> "+name) + price
			} else {
				line = t.ProductRow.Render("  "+name) + price
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
