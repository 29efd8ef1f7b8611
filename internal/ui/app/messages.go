// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shopdesk/internal/menu"
	"github.com/jeranaias/shopdesk/internal/session"
)

// requestTimeout bounds each background API call started from the UI.
const requestTimeout = 20 * time.Second

// AuthChangedMsg relays a session store change into the event loop.
type AuthChangedMsg struct {
	Authenticated bool
}

type loginResultMsg struct {
	err error
}

type loadedMsg struct {
	layout     menu.Layout
	report     menu.Report
	fromDraft  bool
	draftSaved time.Time
	err        error
}

type savedMsg struct {
	order menu.Order
	err   error
}

type logoutResultMsg struct {
	err error
}

func (m Model) loginCmd(username, password string) tea.Cmd {
	sessions := m.deps.Sessions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loginResultMsg{err: sessions.Login(ctx, username, password)}
	}
}

// loadCmd fetches the catalog and the arrangement to show: the user's local
// draft when one exists, otherwise the saved order.
func (m Model) loadCmd(user session.User) tea.Cmd {
	backend, drafts, log := m.deps.Backend, m.deps.Drafts, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		cat, err := backend.Catalog(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}

		var msg loadedMsg
		order := menu.Order{}
		if drafts != nil && user.ID != "" {
			draft, ok, err := drafts.LoadDraft(ctx, user.ID)
			if err != nil {
				log.Warn("failed to load draft", "user", user.ID, "error", err)
			}
			if ok {
				order = draft.Order
				msg.fromDraft = true
				msg.draftSaved = draft.SavedAt
			}
		}
		if !msg.fromDraft {
			order, err = backend.QuickShopOrder(ctx)
			if err != nil {
				return loadedMsg{err: err}
			}
		}

		msg.layout, msg.report = menu.Reconcile(order, cat)
		return msg
	}
}

func (m Model) saveCmd(order menu.Order) tea.Cmd {
	backend := m.deps.Backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return savedMsg{order: order, err: backend.SaveQuickShopOrder(ctx, order)}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	sessions := m.deps.Sessions
	return func() tea.Msg {
		return logoutResultMsg{err: sessions.Logout()}
	}
}

func (m Model) deleteDraftCmd(userID string) tea.Cmd {
	drafts, log := m.deps.Drafts, m.log
	if drafts == nil || userID == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := drafts.DeleteDraft(ctx, userID); err != nil {
			log.Warn("failed to delete draft", "user", userID, "error", err)
		}
		return nil
	}
}
