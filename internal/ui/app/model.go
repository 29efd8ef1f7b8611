// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shopdesk/internal/activity"
	"github.com/jeranaias/shopdesk/internal/api"
	"github.com/jeranaias/shopdesk/internal/guard"
	"github.com/jeranaias/shopdesk/internal/menu"
	"github.com/jeranaias/shopdesk/internal/session"
	"github.com/jeranaias/shopdesk/internal/ui/components"
	"github.com/jeranaias/shopdesk/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

type screen int

const (
	screenLogin screen = iota
	screenMenu
)

// row is one selectable line on the menu screen. product is -1 for the
// category header.
type row struct {
	section int
	product int
}

// Model is the Bubble Tea model for shopdesk.
type Model struct {
	deps  Deps
	theme *styles.Theme
	log   *slog.Logger

	screen screen
	width  int
	height int

	// Sign-in
	username textinput.Model
	password textinput.Model
	focus    int
	loginErr string
	busy     bool

	// Quick shopping
	user    session.User
	layout  menu.Layout
	report  menu.Report
	cursor  int
	dirty   bool
	loading bool
	saving  bool

	overlay components.CountdownOverlay
	toasts  *components.ToastManager

	removeActivity func()
	unsubscribe    func()
}

// New builds the model. Every key and mouse message it receives is reported
// to deps.Monitor, whose handler resets deps.Guard.
func New(deps Deps) (Model, error) {
	if err := deps.validate(); err != nil {
		return Model{}, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Theme == nil {
		deps.Theme = styles.NewTheme()
	}

	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Prompt = ""
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Prompt = ""
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'

	m := Model{
		deps:     deps,
		theme:    deps.Theme,
		log:      deps.Logger,
		username: user,
		password: pass,
		overlay:  components.NewCountdownOverlay(),
		toasts:   components.NewToastManager(),
	}

	g := deps.Guard
	m.removeActivity = deps.Monitor.Install(func(activity.Event) { g.ResetTimer() })

	notifier := deps.Notifier
	m.unsubscribe = deps.Sessions.Subscribe(func(authenticated bool) {
		notifier.Post(AuthChangedMsg{Authenticated: authenticated})
	})

	if deps.Sessions.IsAuthenticated() {
		m.enterMenu()
	}
	return m, nil
}

// Close detaches the model from the monitor and the session store.
func (m Model) Close() {
	if m.removeActivity != nil {
		m.removeActivity()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.deps.Guard.Stop()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, components.ToastTickCmd()}
	if m.screen == screenMenu {
		cmds = append(cmds, m.loadCmd(m.user))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.deps.Monitor.Observe(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.overlay.SetSize(msg.Width, msg.Height)
		return m, nil

	case components.ToastTickMsg:
		m.toasts.TickToasts()
		return m, components.ToastTickCmd()

	case components.CountdownStartMsg:
		m.overlay.Show(msg.Seconds)
		return m, nil

	case components.CountdownTickMsg:
		m.overlay.SetSeconds(msg.Seconds)
		return m, nil

	case components.CountdownDismissMsg:
		m.overlay.Dismiss()
		return m, nil

	case components.SessionExpiredMsg:
		m.overlay.ShowExpired()
		return m, m.leaveMenu()

	case AuthChangedMsg:
		return m.handleAuthChanged(msg)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case loadedMsg:
		return m.handleLoaded(msg)

	case savedMsg:
		return m.handleSaved(msg)

	case logoutResultMsg:
		if msg.err != nil {
			m.log.Warn("remote logout failed", "error", msg.err)
			m.toasts.AddWarning("Signed out here, but the server could not be reached")
		}
		return m, nil

	case tea.MouseMsg:
		if m.screen == screenMenu && !m.overlay.IsVisible() {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				m.moveCursor(-1)
			case tea.MouseButtonWheelDown:
				m.moveCursor(1)
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.screen == screenLogin {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	// A key while an overlay is up only acknowledges it.
	if m.overlay.IsExpired() {
		m.overlay.Hide()
		return m, nil
	}
	if m.overlay.IsVisible() {
		m.overlay.Dismiss()
		return m, nil
	}

	if m.screen == screenLogin {
		return m.handleLoginKey(msg)
	}
	return m.handleMenuKey(msg)
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.quit()
	case "tab", "shift+tab", "up", "down":
		m.setFocus(1 - m.focus)
		return m, textinput.Blink
	case "enter":
		if m.focus == 0 {
			m.setFocus(1)
			return m, textinput.Blink
		}
		return m.submitLogin()
	}
	return m.updateInputs(msg)
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m.quit()
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(len(m.rows())-1, 0)
	case "shift+up", "K":
		m.moveSelection(-1)
	case "shift+down", "J":
		m.moveSelection(1)
	case "ctrl+s":
		if m.saving || m.loading {
			return m, nil
		}
		m.saving = true
		return m, m.saveCmd(m.layout.Order())
	case "r":
		if m.loading {
			return m, nil
		}
		if m.dirty {
			m.toasts.AddWarning("Unsaved changes discarded")
		}
		m.loading = true
		m.dirty = false
		return m, tea.Batch(m.deleteDraftCmd(m.user.ID), m.loadCmd(session.User{}))
	case "x":
		m.toasts.DismissNewest()
	case "ctrl+l":
		m.deps.Guard.Stop()
		draft := m.leaveMenu()
		m.toasts.AddStatus("Signed out")
		return m, tea.Batch(draft, m.logoutCmd())
	}
	return m, nil
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var c1, c2 tea.Cmd
	m.username, c1 = m.username.Update(msg)
	m.password, c2 = m.password.Update(msg)
	return m, tea.Batch(c1, c2)
}

func (m *Model) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.username.Focus()
		m.password.Blur()
	} else {
		m.username.Blur()
		m.password.Focus()
	}
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	username := strings.TrimSpace(m.username.Value())
	password := m.password.Value()
	if username == "" || password == "" {
		m.loginErr = "Enter your username and password"
		return m, nil
	}
	m.busy = true
	m.loginErr = ""
	return m, m.loginCmd(username, password)
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.loginErr = loginMessage(msg.err)
		m.password.SetValue("")
		return m, nil
	}
	return m, m.enterMenu()
}

func (m Model) handleAuthChanged(msg AuthChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Authenticated {
		if m.screen == screenLogin {
			m.busy = false
			m.overlay.Hide()
			return m, m.enterMenu()
		}
		return m, nil
	}

	if m.screen != screenMenu {
		return m, nil
	}
	expired := m.deps.Guard.State() == guard.StateLoggedOut
	m.deps.Guard.Stop()
	cmd := m.leaveMenu()
	if !expired {
		m.toasts.AddWarning("Your session ended. Please sign in again")
	}
	return m, cmd
}

func (m Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if m.screen != screenMenu {
		return m, nil
	}
	if msg.err != nil {
		m.log.Warn("failed to load quick shopping order", "error", msg.err)
		m.toasts.AddError("Could not load the menu: " + errorText(msg.err))
		return m, nil
	}

	m.layout = msg.layout
	m.report = msg.report
	m.cursor = min(m.cursor, max(len(m.rows())-1, 0))
	m.dirty = msg.fromDraft

	switch {
	case msg.fromDraft:
		m.toasts.AddStatus(fmt.Sprintf("Restored unsaved arrangement from %s", msg.draftSaved.Format("Jan 2 15:04")))
	case msg.report.Changed():
		m.toasts.AddWarning(reportSummary(msg.report))
	}
	return m, nil
}

func (m Model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	m.saving = false
	if msg.err != nil {
		m.log.Warn("failed to save quick shopping order", "error", msg.err)
		m.toasts.AddError("Save failed: " + errorText(msg.err))
		return m, nil
	}
	m.dirty = false
	m.report = menu.Report{}
	m.toasts.AddSuccess("Quick shopping order saved")
	return m, m.deleteDraftCmd(m.user.ID)
}

// =============================================================================
// SCREEN TRANSITIONS
// =============================================================================

// enterMenu switches to the menu screen for the current session and arms the
// guard. It does nothing if already there or signed out.
func (m *Model) enterMenu() tea.Cmd {
	if m.screen == screenMenu {
		return nil
	}
	rec, ok := m.deps.Sessions.Current()
	if !ok {
		return nil
	}
	m.user = rec.User
	m.screen = screenMenu
	m.loading = true
	m.cursor = 0
	m.password.SetValue("")
	m.deps.Guard.Start()
	m.log.Info("menu opened", "user", rec.User.Name)
	return m.loadCmd(m.user)
}

// leaveMenu returns to the sign-in screen. Unsaved changes are kept as a
// draft for the same user.
func (m *Model) leaveMenu() tea.Cmd {
	if m.screen != screenMenu {
		return nil
	}
	var cmd tea.Cmd
	if m.dirty {
		cmd = m.saveDraftCmd(m.user.ID, m.layout.Order())
	}

	m.screen = screenLogin
	m.layout = menu.Layout{}
	m.report = menu.Report{}
	m.cursor = 0
	m.dirty = false
	m.loading = false
	m.saving = false
	m.user = session.User{}
	m.password.SetValue("")
	if m.username.Value() != "" {
		m.setFocus(1)
	} else {
		m.setFocus(0)
	}
	return cmd
}

func (m Model) saveDraftCmd(userID string, order menu.Order) tea.Cmd {
	drafts, log := m.deps.Drafts, m.log
	if drafts == nil || userID == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := drafts.SaveDraft(ctx, userID, order); err != nil {
			log.Warn("failed to save draft", "user", userID, "error", err)
			return nil
		}
		log.Info("draft saved", "user", userID)
		return nil
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	draft := m.leaveMenu()
	m.deps.Guard.Stop()
	if draft == nil {
		return m, tea.Quit
	}
	return m, tea.Sequence(draft, tea.Quit)
}

// =============================================================================
// CURSOR
// =============================================================================

func (m Model) rows() []row {
	var rows []row
	for s, sec := range m.layout.Sections {
		rows = append(rows, row{section: s, product: -1})
		for p := range sec.Products {
			rows = append(rows, row{section: s, product: p})
		}
	}
	return rows
}

func (m Model) indexOf(r row) int {
	for i, x := range m.rows() {
		if x == r {
			return i
		}
	}
	return 0
}

func (m *Model) moveCursor(delta int) {
	n := len(m.rows())
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), n-1)
}

// moveSelection shifts the selected category or product and keeps the cursor
// on it.
func (m *Model) moveSelection(delta int) {
	rows := m.rows()
	if m.loading || m.cursor >= len(rows) {
		return
	}
	r := rows[m.cursor]
	if r.product < 0 {
		if m.layout.MoveCategory(r.section, delta) {
			m.dirty = true
			to := min(max(r.section+delta, 0), len(m.layout.Sections)-1)
			m.cursor = m.indexOf(row{section: to, product: -1})
		}
		return
	}
	if m.layout.MoveProduct(r.section, r.product, delta) {
		m.dirty = true
		to := min(max(r.product+delta, 0), len(m.layout.Sections[r.section].Products)-1)
		m.cursor = m.indexOf(row{section: r.section, product: to})
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func loginMessage(err error) string {
	switch {
	case errors.Is(err, api.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, session.ErrMissingCredentials):
		return "Enter your username and password"
	default:
		return "Sign-in failed: " + errorText(err)
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, api.ErrUnauthorized):
		return "your session is no longer valid"
	case errors.Is(err, api.ErrRateLimited):
		return "the server is busy, try again shortly"
	case errors.Is(err, api.ErrServer):
		return "the server reported an error"
	case errors.Is(err, context.DeadlineExceeded):
		return "the server did not answer in time"
	default:
		return err.Error()
	}
}

func reportSummary(r menu.Report) string {
	var parts []string
	if n := len(r.AddedCategories); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new %s", n, pluralize(n, "category", "categories")))
	}
	if n := len(r.AddedProducts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new %s", n, pluralize(n, "product", "products")))
	}
	if n := len(r.MissingCategories) + len(r.MissingProducts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	return "Catalog changed since the last save: " + strings.Join(parts, ", ")
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
