// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles for every shopdesk screen.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style
	Frame    lipgloss.Style

	// Login screen
	LoginBox   lipgloss.Style
	Label      lipgloss.Style
	FieldError lipgloss.Style

	// Quick shopping screen
	CategoryRow         lipgloss.Style
	CategoryRowSelected lipgloss.Style
	ProductRow          lipgloss.Style
	ProductRowSelected  lipgloss.Style
	Price               lipgloss.Style
	Dirty               lipgloss.Style
	StatusBar           lipgloss.Style
}

// NewTheme detects the terminal and builds a Theme.
func NewTheme() *Theme {
	return newTheme(termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewPlainTheme returns a Theme without color, for tests and dumb terminals.
func NewPlainTheme() *Theme {
	return newTheme(termenv.Ascii, true)
}

func newTheme(profile termenv.Profile, dark bool) *Theme {
	t := &Theme{IsDark: dark, ColorProfile: profile}

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Gold)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted)
	t.Frame = lipgloss.NewStyle().Padding(1, 2)

	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Gold).
		Padding(1, 3).
		Width(48)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary).Width(10)
	t.FieldError = lipgloss.NewStyle().Foreground(Rose)

	t.CategoryRow = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.CategoryRowSelected = t.CategoryRow.Background(SelectionBg).Foreground(Gold)
	t.ProductRow = lipgloss.NewStyle().Foreground(TextPrimary).PaddingLeft(4)
	t.ProductRowSelected = t.ProductRow.Background(SelectionBg).Foreground(Gold)
	t.Price = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Dirty = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	return t
}
