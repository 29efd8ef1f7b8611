// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// NOTICE MESSAGES
// =============================================================================

// CountdownStartMsg opens the countdown at Seconds.
type CountdownStartMsg struct{ Seconds int }

// CountdownTickMsg updates the countdown to Seconds.
type CountdownTickMsg struct{ Seconds int }

// CountdownDismissMsg closes the countdown because the operator was active or
// the guard stopped.
type CountdownDismissMsg struct{}

// SessionExpiredMsg reports that the idle guard signed the operator out.
type SessionExpiredMsg struct{}

// =============================================================================
// CHANNEL NOTIFIER
// =============================================================================

// ChannelNotifier carries guard notices from timer goroutines into the Bubble
// Tea loop. Its methods never block: notices are queued and Pump delivers
// them one at a time in the order they were raised. A tick queued
// behind an undelivered tick replaces it, so a stalled UI catches up on the
// latest number instead of replaying each second. Nothing else is dropped.
type ChannelNotifier struct {
	mu     sync.Mutex
	queue  []tea.Msg
	ready  chan struct{}
	done   chan struct{}
	closed sync.Once
}

// NewChannelNotifier creates an empty notifier.
func NewChannelNotifier() *ChannelNotifier {
	return &ChannelNotifier{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (n *ChannelNotifier) ShowCountdown(seconds int)   { n.push(CountdownStartMsg{Seconds: seconds}) }
func (n *ChannelNotifier) UpdateCountdown(seconds int) { n.push(CountdownTickMsg{Seconds: seconds}) }
func (n *ChannelNotifier) DismissCountdown()           { n.push(CountdownDismissMsg{}) }
func (n *ChannelNotifier) SessionExpired()             { n.push(SessionExpiredMsg{}) }

func (n *ChannelNotifier) push(msg tea.Msg) {
	n.mu.Lock()
	if _, tick := msg.(CountdownTickMsg); tick && len(n.queue) > 0 {
		if _, lastTick := n.queue[len(n.queue)-1].(CountdownTickMsg); lastTick {
			n.queue[len(n.queue)-1] = msg
			n.mu.Unlock()
			return
		}
	}
	n.queue = append(n.queue, msg)
	n.mu.Unlock()

	select {
	case n.ready <- struct{}{}:
	default:
	}
}

// Next blocks until a notice is queued, ctx is done or the notifier closes.
func (n *ChannelNotifier) Next(ctx context.Context) (tea.Msg, bool) {
	for {
		n.mu.Lock()
		if len(n.queue) > 0 {
			msg := n.queue[0]
			n.queue[0] = nil
			n.queue = n.queue[1:]
			more := len(n.queue) > 0
			n.mu.Unlock()
			if more {
				select {
				case n.ready <- struct{}{}:
				default:
				}
			}
			return msg, true
		}
		n.mu.Unlock()

		select {
		case <-n.ready:
		case <-n.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Pending returns how many notices are waiting.
func (n *ChannelNotifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Post queues an arbitrary message behind any pending notices. Other
// background sources (session store subscribers) use it to reach the same
// loop in order.
func (n *ChannelNotifier) Post(msg tea.Msg) {
	if msg != nil {
		n.push(msg)
	}
}

// Pump forwards notices to send until ctx is done or the notifier closes.
// Pass Program.Send.
func (n *ChannelNotifier) Pump(ctx context.Context, send func(tea.Msg)) {
	for {
		msg, ok := n.Next(ctx)
		if !ok {
			return
		}
		send(msg)
	}
}

// Close releases any goroutine blocked in Next.
func (n *ChannelNotifier) Close() {
	n.closed.Do(func() { close(n.done) })
}
