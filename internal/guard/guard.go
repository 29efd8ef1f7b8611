// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/shopdesk/internal/clock"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Default idle timing used by the shop back office.
const (
	DefaultTimeout = 5 * time.Minute
	DefaultWarning = 20 * time.Second
)

// ErrInvalidConfig is returned when the warning window does not fit inside
// the idle timeout.
var ErrInvalidConfig = errors.New("invalid session timer config")

// Config holds the idle timing. It is fixed once the guard is created.
type Config struct {
	// Timeout is the total idle time before a forced logout.
	Timeout time.Duration
	// Warning is the length of the countdown shown before the logout.
	Warning time.Duration
}

// DefaultConfig returns the production timing: 5 minutes idle, 20 second warning.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout, Warning: DefaultWarning}
}

// Validate checks 0 < Warning < Timeout.
func (c Config) Validate() error {
	if c.Warning <= 0 {
		return fmt.Errorf("%w: warning %v must be positive", ErrInvalidConfig, c.Warning)
	}
	if c.Warning >= c.Timeout {
		return fmt.Errorf("%w: warning %v must be shorter than timeout %v", ErrInvalidConfig, c.Warning, c.Timeout)
	}
	return nil
}

// WarningAfter is the idle time at which the countdown appears.
func (c Config) WarningAfter() time.Duration {
	return c.Timeout - c.Warning
}

// CountdownSeconds is the first value shown by the countdown.
func (c Config) CountdownSeconds() int {
	return int((c.Warning + time.Second - 1) / time.Second)
}

// =============================================================================
// STATE
// =============================================================================

// State is the guard's position in its lifecycle.
type State int

const (
	// StateIdle means the guard is not armed.
	StateIdle State = iota
	// StateActive means both timers are running and no warning is shown.
	StateActive
	// StateWarning means the countdown is visible and the logout is pending.
	StateWarning
	// StateLoggedOut means the session was ended for inactivity.
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateWarning:
		return "WARNING"
	case StateLoggedOut:
		return "LOGGED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Armed reports whether timers are running in this state.
func (s State) Armed() bool {
	return s == StateActive || s == StateWarning
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Store is the session holder the guard terminates on expiry.
type Store interface {
	IsAuthenticated() bool
	Logout() error
}

// Notifier receives the user-visible countdown and expiry notices.
// Implementations must not block and must not call back into the Guard
// from within these methods.
type Notifier interface {
	ShowCountdown(seconds int)
	UpdateCountdown(seconds int)
	DismissCountdown()
	SessionExpired()
}

type nopNotifier struct{}

func (nopNotifier) ShowCountdown(int)   {}
func (nopNotifier) UpdateCountdown(int) {}
func (nopNotifier) DismissCountdown()   {}
func (nopNotifier) SessionExpired()     {}

// Option customizes a Guard.
type Option func(*Guard)

// WithClock replaces the runtime clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLogger sets the logger used for session events.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// =============================================================================
// GUARD
// =============================================================================

// Guard enforces the idle timeout for one authenticated session at a time.
type Guard struct {
	cfg      Config
	store    Store
	notifier Notifier
	clock    clock.Clock
	log      *slog.Logger

	mu sync.Mutex

	state State
	// gen identifies the armed timer pair; callbacks from an older pair are ignored.
	gen       uint64
	runID     string
	deadline  time.Time
	countdown int
	visible   bool

	warnTimer   clock.Timer
	logoutTimer clock.Timer
	tickTimer   clock.Timer
}

// New validates cfg and returns an unarmed guard.
func New(cfg Config, store Store, notifier Notifier, opts ...Option) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("guard: store is required")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	g := &Guard{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		clock:    clock.Real(),
		log:      slog.New(slog.DiscardHandler),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the timing the guard was built with.
func (g *Guard) Config() Config {
	return g.cfg
}

// Start arms the guard. It does nothing when the store has no authenticated
// session. Calling Start on an armed guard restarts both timers.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.store.IsAuthenticated() {
		g.log.Debug("guard start skipped", "event", "SESSION_GUARD_SKIPPED", "reason", "not authenticated")
		return
	}

	if !g.state.Armed() {
		g.runID = uuid.NewString()
	}
	g.dismissLocked()
	g.armLocked()

	g.log.Info("session guard armed", "event", "SESSION_GUARD_ARMED", "guard", g.runID,
		"timeout", g.cfg.Timeout, "warning", g.cfg.Warning)
}

// ResetTimer records activity. Both timers restart from now and a visible
// countdown is dismissed. It is a no-op unless the guard is armed.
func (g *Guard) ResetTimer() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.state.Armed() {
		return
	}

	if g.releaseIfSignedOutLocked() {
		return
	}

	if g.state == StateWarning {
		g.log.Info("session extended", "event", "SESSION_EXTENDED", "guard", g.runID)
	}
	g.dismissLocked()
	g.armLocked()
}

// Stop cancels all timers and hides the countdown. It is idempotent.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.state.Armed() {
		return
	}
	g.teardownLocked()
	g.log.Info("session guard stopped", "event", "SESSION_GUARD_STOPPED", "guard", g.runID)
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Remaining returns the time left before the forced logout, or 0 when the
// guard is not armed.
func (g *Guard) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.state.Armed() {
		return 0
	}
	remaining := g.deadline.Sub(g.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Countdown returns the seconds currently shown, 0 outside the warning window.
func (g *Guard) Countdown() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateWarning {
		return 0
	}
	return g.countdown
}

// =============================================================================
// TIMERS
// =============================================================================

// armLocked cancels any running timers and schedules a fresh pair in a single
// state update.
func (g *Guard) armLocked() {
	g.stopTimersLocked()

	g.gen++
	gen := g.gen
	g.state = StateActive
	g.countdown = 0
	g.deadline = g.clock.Now().Add(g.cfg.Timeout)

	g.warnTimer = g.clock.AfterFunc(g.cfg.WarningAfter(), func() { g.onWarning(gen) })
	g.logoutTimer = g.clock.AfterFunc(g.cfg.Timeout, func() { g.onExpire(gen) })
}

// stopTimersLocked clears every pending timer and invalidates their callbacks.
func (g *Guard) stopTimersLocked() {
	for _, t := range []*clock.Timer{&g.warnTimer, &g.logoutTimer, &g.tickTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
	g.gen++
}

func (g *Guard) teardownLocked() {
	g.stopTimersLocked()
	g.dismissLocked()
	g.state = StateIdle
	g.countdown = 0
}

// releaseIfSignedOutLocked tears the guard down to Idle when the session was
// ended elsewhere, so no expiry is reported for it.
func (g *Guard) releaseIfSignedOutLocked() bool {
	if g.store.IsAuthenticated() {
		return false
	}
	g.teardownLocked()
	g.log.Info("session guard released", "event", "SESSION_GUARD_RELEASED", "guard", g.runID,
		"reason", "deauthenticated")
	return true
}

func (g *Guard) dismissLocked() {
	if g.visible {
		g.visible = false
		g.notifier.DismissCountdown()
	}
}

func (g *Guard) onWarning(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen || g.state != StateActive {
		return
	}
	if g.releaseIfSignedOutLocked() {
		return
	}

	g.state = StateWarning
	g.warnTimer = nil
	g.countdown = g.cfg.CountdownSeconds()
	g.visible = true
	g.notifier.ShowCountdown(g.countdown)
	g.scheduleTickLocked(gen)

	g.log.Info("session warning", "event", "SESSION_WARNING", "guard", g.runID, "expires_in", g.cfg.Warning)
}

// scheduleTickLocked queues the next one-second countdown step. The last
// value shown is 1; the logout timer ends the window.
func (g *Guard) scheduleTickLocked(gen uint64) {
	if g.countdown <= 1 {
		g.tickTimer = nil
		return
	}
	g.tickTimer = g.clock.AfterFunc(time.Second, func() { g.onTick(gen) })
}

func (g *Guard) onTick(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.gen || g.state != StateWarning || g.releaseIfSignedOutLocked() {
		return
	}
	g.countdown--
	g.notifier.UpdateCountdown(g.countdown)
	g.scheduleTickLocked(gen)
}

func (g *Guard) onExpire(gen uint64) {
	g.mu.Lock()
	if gen != g.gen || !g.state.Armed() || g.releaseIfSignedOutLocked() {
		g.mu.Unlock()
		return
	}

	g.logoutTimer = nil
	g.stopTimersLocked()
	g.dismissLocked()
	g.state = StateLoggedOut
	g.countdown = 0
	runID := g.runID
	g.mu.Unlock()

	// The state change above is committed before any side effect, so a
	// concurrent Stop or ResetTimer cannot produce a second expiry.
	if err := g.store.Logout(); err != nil {
		g.log.Warn("logout after idle timeout failed", "event", "SESSION_LOGOUT_FAILED", "guard", runID, "error", err)
	}
	g.notifier.SessionExpired()

	g.log.Info("session expired", "event", "SESSION_EXPIRED", "guard", runID, "idle", g.cfg.Timeout)
}
