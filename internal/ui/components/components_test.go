// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shopdesk/internal/guard"
)

// =============================================================================
// COUNTDOWN OVERLAY
// =============================================================================

func TestCountdownOverlayLifecycle(t *testing.T) {
	o := NewCountdownOverlay()
	assert.False(t, o.IsVisible())
	assert.Equal(t, "", o.View())

	o.Show(20)
	assert.True(t, o.IsVisible())
	assert.Equal(t, 20, o.Seconds())
	assert.Equal(t, "Session expires in 20 seconds", o.Message())

	o.SetSeconds(1)
	assert.Equal(t, "Session expires in 1 second", o.Message())

	o.Dismiss()
	assert.False(t, o.IsVisible())
	o.SetSeconds(5)
	assert.False(t, o.IsVisible(), "a late tick does not reopen the warning")
	assert.Equal(t, 0, o.Seconds())
}

func TestCountdownOverlayExpired(t *testing.T) {
	o := NewCountdownOverlay()
	o.Show(3)
	o.ShowExpired()
	assert.True(t, o.IsExpired())
	assert.Equal(t, "Session expired, please log in again", o.Message())

	o.Dismiss()
	assert.True(t, o.IsExpired(), "dismiss leaves the expired notice")
	o.SetSeconds(2)
	assert.Equal(t, "Session expired, please log in again", o.Message())

	o.Hide()
	assert.False(t, o.IsVisible())
	assert.False(t, o.IsExpired())
}

func TestCountdownOverlayView(t *testing.T) {
	o := NewCountdownOverlay()
	o.SetSize(80, 24)
	o.Show(7)
	view := o.View()
	assert.Contains(t, view, "Session expires in 7 seconds")
	assert.Len(t, strings.Split(view, "\n"), 24)

	o.ShowExpired()
	assert.Contains(t, o.View(), "Session expired, please log in again")
}

func TestCountdownOverlayMessageNeverWraps(t *testing.T) {
	for _, width := range []int{0, 20, 40, 48, 52, 80, 200} {
		o := NewCountdownOverlay()
		o.SetSize(width, 24)

		o.Show(20)
		assert.Contains(t, o.View(), "Session expires in 20 seconds", "width %d", width)

		o.ShowExpired()
		assert.Contains(t, o.View(), "Session expired, please log in again", "width %d", width)
	}
}

// =============================================================================
// TOASTS
// =============================================================================

func TestToastManagerExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	m := NewToastManager()
	m.now = func() time.Time { return now }

	m.AddStatus("saved")
	errID := m.AddError("failed")
	require.Len(t, m.Toasts(), 2)
	assert.Equal(t, errID, m.Toasts()[0].ID, "newest first")

	now = now.Add(DefaultToastDuration)
	left := m.TickToasts()
	require.Len(t, left, 1)
	assert.Equal(t, "failed", left[0].Message)

	now = now.Add(ErrorToastDuration)
	assert.Empty(t, m.TickToasts())
	assert.False(t, m.HasToasts())
}

func TestToastManagerCapAndRemove(t *testing.T) {
	m := NewToastManager()
	var ids []int
	for i := 0; i < maxToasts+2; i++ {
		ids = append(ids, m.AddWarning("w"))
	}
	assert.Len(t, m.Toasts(), maxToasts)

	m.Remove(ids[len(ids)-1])
	assert.Len(t, m.Toasts(), maxToasts-1)
	m.DismissNewest()
	assert.Len(t, m.Toasts(), maxToasts-2)
	m.Clear()
	assert.False(t, m.HasToasts())
}

func TestRenderToasts(t *testing.T) {
	m := NewToastManager()
	m.AddSuccess("Quick shopping order saved")
	out := RenderToasts(m.Toasts(), 0, 0)
	assert.Contains(t, out, "Quick shopping order saved")
	assert.Contains(t, out, "[OK]")
	assert.Equal(t, "", RenderToasts(nil, 80, 24))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "short", wrapText("short", 0))
	for _, line := range strings.Split(wrapText("指輪 指輪 指輪 指輪", 9), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 5)
	}
}

// =============================================================================
// CHANNEL NOTIFIER
// =============================================================================

func TestChannelNotifierImplementsGuardNotifier(t *testing.T) {
	var _ guard.Notifier = NewChannelNotifier()
}

func TestChannelNotifierOrder(t *testing.T) {
	n := NewChannelNotifier()
	n.ShowCountdown(3)
	n.UpdateCountdown(2)
	n.DismissCountdown()
	n.SessionExpired()

	want := []tea.Msg{
		CountdownStartMsg{Seconds: 3},
		CountdownTickMsg{Seconds: 2},
		CountdownDismissMsg{},
		SessionExpiredMsg{},
	}
	for _, w := range want {
		got, ok := n.Next(context.Background())
		require.True(t, ok)
		assert.Equal(t, w, got)
	}
	assert.Equal(t, 0, n.Pending())
}

func TestChannelNotifierCoalescesTicks(t *testing.T) {
	n := NewChannelNotifier()
	n.ShowCountdown(20)
	for s := 19; s >= 1; s-- {
		n.UpdateCountdown(s)
	}
	n.SessionExpired()

	require.Equal(t, 3, n.Pending())
	first, _ := n.Next(context.Background())
	second, _ := n.Next(context.Background())
	third, _ := n.Next(context.Background())
	assert.Equal(t, CountdownStartMsg{Seconds: 20}, first)
	assert.Equal(t, CountdownTickMsg{Seconds: 1}, second)
	assert.Equal(t, SessionExpiredMsg{}, third)
}

func TestChannelNotifierNeverBlocks(t *testing.T) {
	n := NewChannelNotifier()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			n.DismissCountdown()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier blocked without a reader")
	}
	assert.Equal(t, 10000, n.Pending())
}

func TestChannelNotifierPump(t *testing.T) {
	n := NewChannelNotifier()
	got := make(chan tea.Msg, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Pump(ctx, func(msg tea.Msg) { got <- msg })
		close(done)
	}()

	n.ShowCountdown(2)
	n.Post("custom")
	n.Post(nil)
	n.SessionExpired()

	for _, want := range []tea.Msg{CountdownStartMsg{Seconds: 2}, "custom", SessionExpiredMsg{}} {
		select {
		case msg := <-got:
			assert.Equal(t, want, msg)
		case <-time.After(5 * time.Second):
			t.Fatal("Pump did not deliver")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Pump did not stop on cancel")
	}
}

func TestChannelNotifierClose(t *testing.T) {
	n := NewChannelNotifier()
	done := make(chan struct{})
	go func() {
		n.Pump(context.Background(), func(tea.Msg) {})
		close(done)
	}()

	n.Close()
	n.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not release the pump")
	}
}

func TestChannelNotifierContext(t *testing.T) {
	n := NewChannelNotifier()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := n.Next(ctx)
	assert.False(t, ok)
}
