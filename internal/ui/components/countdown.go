// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/shopdesk/internal/ui/styles"
)

// =============================================================================
// COUNTDOWN OVERLAY
// =============================================================================

// CountdownOverlay shows the idle warning while the guard counts down, and the
// expired notice once it has signed the operator out.
//
// The overlay only displays what the guard tells it. Dismissing it hides the
// box; it does not touch the guard's timers.
type CountdownOverlay struct {
	visible bool
	expired bool
	seconds int

	width  int
	height int
}

// NewCountdownOverlay creates a hidden overlay.
func NewCountdownOverlay() CountdownOverlay {
	return CountdownOverlay{}
}

// SetSize sets the area the overlay centers itself in.
func (o *CountdownOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the warning with seconds left.
func (o *CountdownOverlay) Show(seconds int) {
	o.visible = true
	o.expired = false
	o.seconds = seconds
}

// SetSeconds updates the number shown. It is ignored while hidden so a late
// tick cannot reopen a dismissed warning.
func (o *CountdownOverlay) SetSeconds(seconds int) {
	if !o.visible || o.expired {
		return
	}
	o.seconds = seconds
}

// Dismiss hides the warning. The expired notice stays until Hide.
func (o *CountdownOverlay) Dismiss() {
	if o.expired {
		return
	}
	o.visible = false
	o.seconds = 0
}

// ShowExpired replaces the warning with the expired notice.
func (o *CountdownOverlay) ShowExpired() {
	o.visible = true
	o.expired = true
	o.seconds = 0
}

// Hide removes whichever box is showing.
func (o *CountdownOverlay) Hide() {
	o.visible = false
	o.expired = false
	o.seconds = 0
}

// IsVisible reports whether a box is showing.
func (o CountdownOverlay) IsVisible() bool { return o.visible }

// IsExpired reports whether the expired notice is showing.
func (o CountdownOverlay) IsExpired() bool { return o.visible && o.expired }

// Seconds returns the number currently shown, 0 when no warning is up.
func (o CountdownOverlay) Seconds() int { return o.seconds }

// Message returns the text of the visible box, or "".
func (o CountdownOverlay) Message() string {
	switch {
	case !o.visible:
		return ""
	case o.expired:
		return "Session expired, please log in again"
	default:
		return fmt.Sprintf("Session expires in %d %s", o.seconds, plural(o.seconds, "second", "seconds"))
	}
}

// View renders the overlay centered in its area, or "" when hidden.
func (o CountdownOverlay) View() string {
	if !o.visible {
		return ""
	}

	var (
		title string
		hint  string
		color lipgloss.AdaptiveColor
	)
	if o.expired {
		title = styles.StatusIndicators.Error + " Signed out"
		hint = "Press enter to sign in"
		color = styles.Rose
	} else {
		title = styles.StatusIndicators.Warning + " Idle session"
		hint = "Press any key to stay signed in"
		color = styles.Amber
	}

	msg := o.Message()

	// The box never wraps its lines, even when the terminal is narrower.
	need := max(lipgloss.Width(msg), lipgloss.Width(title), lipgloss.Width(hint)) + 8
	boxWidth := max(clampInt(o.width-8, 40, 56), need)

	content := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Foreground(color).Bold(true).Render(title),
		"",
		lipgloss.NewStyle().Foreground(styles.TextPrimary).Width(boxWidth-8).Align(lipgloss.Center).Render(msg),
		"",
		lipgloss.NewStyle().Foreground(styles.TextSecondary).Italic(true).Render(hint),
	)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(color).
		Padding(1, 3).
		Width(boxWidth).
		Align(lipgloss.Center).
		Render(content)

	if o.width <= 0 || o.height <= 0 {
		return box
	}
	return lipgloss.Place(o.width, o.height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
