// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package activity turns operator input into activity signals for the idle
// session guard.
//
// Every qualifying input is forwarded immediately; there is no debouncing.
package activity

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shopdesk/internal/clock"
)

// Kind identifies the interaction that produced an activity signal.
type Kind int

const (
	PointerDown Kind = iota
	PointerMove
	KeyPress
	KeyDown
	Scroll
	TouchStart
	Click
	// Programmatic is an explicit extension, e.g. after a successful API call.
	Programmatic
)

func (k Kind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case KeyPress:
		return "keypress"
	case KeyDown:
		return "keydown"
	case Scroll:
		return "scroll"
	case TouchStart:
		return "touchstart"
	case Click:
		return "click"
	case Programmatic:
		return "programmatic"
	default:
		return "unknown"
	}
}

// Event is a single activity signal. Only its occurrence matters.
type Event struct {
	Kind Kind
	At   time.Time
}

// Classify maps a bubbletea message to an activity kind. Messages that are
// not operator input (resizes, ticks, results) report false.
func Classify(msg tea.Msg) (Kind, bool) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			return KeyPress, true
		}
		return KeyDown, true

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown,
			tea.MouseButtonWheelLeft, tea.MouseButtonWheelRight:
			return Scroll, true
		}
		switch msg.Action {
		case tea.MouseActionPress:
			return PointerDown, true
		case tea.MouseActionRelease:
			return Click, true
		case tea.MouseActionMotion:
			return PointerMove, true
		}
	}
	return 0, false
}

// Monitor forwards activity to at most one installed handler.
type Monitor struct {
	clock clock.Clock

	mu      sync.Mutex
	handler func(Event)
	// owner identifies the current installation so a stale remove func
	// cannot uninstall a newer handler.
	owner uint64
}

// NewMonitor returns a monitor with no handler installed.
func NewMonitor(c clock.Clock) *Monitor {
	if c == nil {
		c = clock.Real()
	}
	return &Monitor{clock: c}
}

// Install sets fn as the activity handler, replacing any previous one. The
// returned func removes the handler; calling it more than once, or after a
// newer Install, does nothing.
func (m *Monitor) Install(fn func(Event)) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.owner++
	owner := m.owner
	m.handler = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.owner == owner {
				m.handler = nil
			}
		})
	}
}

// Installed reports whether a handler is currently installed.
func (m *Monitor) Installed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// Observe forwards msg if it is operator input. It reports whether a signal
// was delivered.
func (m *Monitor) Observe(msg tea.Msg) bool {
	kind, ok := Classify(msg)
	if !ok {
		return false
	}
	return m.Signal(kind)
}

// Signal delivers an activity event of the given kind.
func (m *Monitor) Signal(kind Kind) bool {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(Event{Kind: kind, At: m.clock.Now()})
	return true
}
