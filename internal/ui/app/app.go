// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the shopdesk terminal application: the sign-in screen, the
// quick shopping arrangement screen and the idle-session overlay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shopdesk/internal/activity"
	"github.com/jeranaias/shopdesk/internal/guard"
	"github.com/jeranaias/shopdesk/internal/menu"
	"github.com/jeranaias/shopdesk/internal/session"
	"github.com/jeranaias/shopdesk/internal/storage"
	"github.com/jeranaias/shopdesk/internal/ui/components"
	"github.com/jeranaias/shopdesk/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Sessions is the part of session.Store the app drives.
type Sessions interface {
	Login(ctx context.Context, username, password string) error
	Logout() error
	IsAuthenticated() bool
	Current() (session.Record, bool)
	Subscribe(fn func(authenticated bool)) (unsubscribe func())
}

// Backend is the part of the API client the app drives.
type Backend interface {
	Catalog(ctx context.Context) (menu.Catalog, error)
	QuickShopOrder(ctx context.Context) (menu.Order, error)
	SaveQuickShopOrder(ctx context.Context, order menu.Order) error
}

// Drafts keeps unsaved arrangements across a forced sign-out.
type Drafts interface {
	SaveDraft(ctx context.Context, userID string, order menu.Order) error
	LoadDraft(ctx context.Context, userID string) (storage.Draft, bool, error)
	DeleteDraft(ctx context.Context, userID string) error
}

// Deps wires the application. Drafts, Logger and Theme are optional.
type Deps struct {
	Sessions Sessions
	Backend  Backend
	Drafts   Drafts
	Guard    *guard.Guard
	Notifier *components.ChannelNotifier
	Monitor  *activity.Monitor
	Logger   *slog.Logger
	Theme    *styles.Theme
}

func (d Deps) validate() error {
	var errs []error
	if d.Sessions == nil {
		errs = append(errs, errors.New("missing Sessions"))
	}
	if d.Backend == nil {
		errs = append(errs, errors.New("missing Backend"))
	}
	if d.Guard == nil {
		errs = append(errs, errors.New("missing Guard"))
	}
	if d.Notifier == nil {
		errs = append(errs, errors.New("missing Notifier"))
	}
	if d.Monitor == nil {
		errs = append(errs, errors.New("missing Monitor"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("app: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// RUN
// =============================================================================

// Run starts the full-screen program and blocks until the operator quits or
// ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	m, err := New(deps)
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(
		m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go deps.Notifier.Pump(pumpCtx, p.Send)

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
