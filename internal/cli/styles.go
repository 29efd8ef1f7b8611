// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/charmbracelet/lipgloss"

var (
	// TitleStyle is used for command headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

	// LabelStyle is used for field labels in status output.
	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)

	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)
