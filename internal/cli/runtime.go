// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jeranaias/shopdesk/internal/activity"
	"github.com/jeranaias/shopdesk/internal/api"
	"github.com/jeranaias/shopdesk/internal/clock"
	"github.com/jeranaias/shopdesk/internal/config"
	"github.com/jeranaias/shopdesk/internal/guard"
	"github.com/jeranaias/shopdesk/internal/logging"
	"github.com/jeranaias/shopdesk/internal/session"
	"github.com/jeranaias/shopdesk/internal/storage"
	"github.com/jeranaias/shopdesk/internal/ui/app"
	"github.com/jeranaias/shopdesk/internal/ui/components"
)

// env is what every command starts from: config, logger, API client and the
// session store, wired to each other.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	client *api.Client
	store  *session.Store

	closeLog func() error
}

func openEnv(opts *options) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	log, closeLog, err := logging.OpenFile(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout.Std()).
		WithRateLimit(cfg.API.RequestsPerSecond).
		WithLogger(log.With("component", "api"))

	store, err := session.Open(cfg.Session.Path, client, session.WithLogger(log.With("component", "session")))
	if err != nil {
		closeLog()
		return nil, err
	}

	client.WithTokenSource(store.Token).OnUnauthorized(store.Invalidate)

	return &env{cfg: cfg, log: log, client: client, store: store, closeLog: closeLog}, nil
}

func (e *env) Close() error {
	return e.closeLog()
}

// requireSession fails with a hint when nobody is signed in.
func (e *env) requireSession() (session.Record, error) {
	rec, ok := e.store.Current()
	if !ok {
		return session.Record{}, fmt.Errorf("%w: run 'shopdesk login' first", session.ErrNotAuthenticated)
	}
	return rec, nil
}

// runConsole opens the full-screen console with the idle guard armed.
func runConsole(ctx context.Context, opts *options) error {
	e, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := components.NewChannelNotifier()
	defer notifier.Close()

	// The guard only needs local sign-out; the revoke must not delay the
	// expiry notice.
	g, err := guard.New(e.cfg.GuardConfig(), e.store.Background(), notifier,
		guard.WithClock(clock.Real()),
		guard.WithLogger(e.log.With("component", "guard")))
	if err != nil {
		return err
	}
	defer e.store.WaitRevoked()
	// A successful API call counts as activity.
	e.client.OnSuccess(g.ResetTimer)

	drafts, err := storage.Open(ctx, e.cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer drafts.Close()

	go func() {
		if err := e.store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn("session watcher stopped", "error", err)
		}
	}()

	e.log.Info("console starting", "api", e.cfg.API.BaseURL,
		"timeout", e.cfg.Session.Timeout.Std(), "warning", e.cfg.Session.Warning.Std())

	return app.Run(ctx, app.Deps{
		Sessions: e.store,
		Backend:  e.client,
		Drafts:   drafts,
		Guard:    g,
		Notifier: notifier,
		Monitor:  activity.NewMonitor(clock.Real()),
		Logger:   e.log.With("component", "app"),
	})
}
