// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a signed-in operator.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMissingCredentials is returned by Login for an empty username or password.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrCorrupt marks an unreadable session file.
	ErrCorrupt = errors.New("corrupt session file")
)

// DefaultLogoutTimeout bounds the remote logout call made by Logout.
const DefaultLogoutTimeout = 5 * time.Second

// =============================================================================
// TYPES
// =============================================================================

// User is the operator a token was issued to.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Record is one sign-in.
type Record struct {
	Token    string    `json:"token"`
	User     User      `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

// Authenticator exchanges credentials for a Record and revokes tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Record, error)
	Logout(ctx context.Context, token string) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for session events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLogoutTimeout bounds the remote revoke performed by Logout.
func WithLogoutTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.logoutTimeout = d
		}
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the authentication state shared by the guard, the API client and
// the UI.
type Store struct {
	auth          Authenticator
	path          string
	log           *slog.Logger
	logoutTimeout time.Duration
	now           func() time.Time

	mu      sync.Mutex
	rec     *Record
	subs    map[int]func(bool)
	nextSub int

	revokes sync.WaitGroup
}

// Open creates a Store backed by the session file at path and restores any
// record saved there. An empty path keeps the session in memory only. A
// corrupt file is logged and removed rather than failing the open.
func Open(path string, auth Authenticator, opts ...Option) (*Store, error) {
	if auth == nil {
		return nil, errors.New("session: nil authenticator")
	}
	s := &Store{
		auth:          auth,
		log:           slog.New(slog.DiscardHandler),
		logoutTimeout: DefaultLogoutTimeout,
		now:           time.Now,
		subs:          make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if path == "" {
		return s, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session path: %w", err)
	}
	s.path = abs

	rec, ok, err := readFile(abs)
	switch {
	case errors.Is(err, ErrCorrupt):
		s.log.Warn("discarding session file", "event", "SESSION_FILE_CORRUPT", "path", abs, "error", err)
		if rmErr := removeFile(abs); rmErr != nil {
			return nil, rmErr
		}
	case err != nil:
		return nil, err
	case ok:
		s.rec = &rec
		s.log.Info("session restored", "event", "SESSION_RESTORED", "user", rec.User.Name)
	}
	return s, nil
}

// Path returns the session file, or "" for a memory-only store.
func (s *Store) Path() string { return s.path }

// Login authenticates against the remote API and stores the result.
func (s *Store) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	rec, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.log.Warn("login failed", "event", "SESSION_LOGIN_FAILED", "user", username, "error", err)
		return fmt.Errorf("login: %w", err)
	}
	if rec.Token == "" {
		return fmt.Errorf("login: server returned an empty token")
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = s.now()
	}

	s.mu.Lock()
	was := s.rec != nil
	s.rec = &rec
	subs := s.snapshotLocked()
	s.mu.Unlock()

	if s.path != "" {
		if err := writeFile(s.path, rec); err != nil {
			s.log.Warn("failed to persist session", "event", "SESSION_PERSIST_FAILED", "error", err)
		}
	}

	s.log.Info("logged in", "event", "SESSION_LOGIN", "user", rec.User.Name, "role", rec.User.Role)
	if !was {
		notify(subs, true)
	}
	return nil
}

// Logout clears the local session, then revokes the token remotely. Local
// state is gone even when the remote call fails; that failure is returned.
// Logging out an unauthenticated store is a no-op.
func (s *Store) Logout() error {
	rec, err := s.logoutLocal()
	if rec == nil {
		return err
	}
	return errors.Join(err, s.revoke(*rec))
}

// Background returns a view of s for the idle guard. Its Logout clears local
// state at once and revokes the token in the background, so the expiry
// notice is not held up by the network. WaitRevoked waits for those calls.
func (s *Store) Background() *BackgroundLogout {
	return &BackgroundLogout{store: s}
}

// WaitRevoked blocks until every background revoke has finished.
func (s *Store) WaitRevoked() {
	s.revokes.Wait()
}

// BackgroundLogout is the guard-facing view returned by Store.Background.
type BackgroundLogout struct {
	store *Store
}

// IsAuthenticated reports whether an operator is signed in.
func (b *BackgroundLogout) IsAuthenticated() bool {
	return b.store.IsAuthenticated()
}

// Logout clears local state and returns its error; the remote revoke runs in
// the background and only logs a failure.
func (b *BackgroundLogout) Logout() error {
	s := b.store
	rec, err := s.logoutLocal()
	if rec == nil {
		return err
	}

	s.revokes.Add(1)
	go func() {
		defer s.revokes.Done()
		if err := s.revoke(*rec); err != nil {
			s.log.Warn("background logout failed", "event", "SESSION_REVOKE_FAILED", "user", rec.User.Name, "error", err)
		}
	}()
	return err
}

// logoutLocal drops the record, removes the file and notifies subscribers.
// It returns the dropped record, or nil when nobody was signed in.
func (s *Store) logoutLocal() (*Record, error) {
	rec, subs := s.clear()
	if rec == nil {
		return nil, nil
	}
	s.log.Info("logged out", "event", "SESSION_LOGOUT", "user", rec.User.Name)

	var err error
	if s.path != "" {
		err = removeFile(s.path)
	}
	notify(subs, false)
	return rec, err
}

func (s *Store) revoke(rec Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.logoutTimeout)
	defer cancel()
	if err := s.auth.Logout(ctx, rec.Token); err != nil {
		return fmt.Errorf("remote logout: %w", err)
	}
	return nil
}

// Invalidate drops the session without contacting the server. It is called
// when the server has already rejected the token.
func (s *Store) Invalidate() {
	rec, subs := s.clear()
	if rec == nil {
		return
	}
	s.log.Warn("session rejected by server", "event", "SESSION_INVALIDATED", "user", rec.User.Name)
	if s.path != "" {
		if err := removeFile(s.path); err != nil {
			s.log.Warn("failed to remove session file", "error", err)
		}
	}
	notify(subs, false)
}

// IsAuthenticated reports whether an operator is signed in.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil
}

// Current returns the active record.
func (s *Store) Current() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return Record{}, false
	}
	return *s.rec, true
}

// Token returns the bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.Token
}

// Subscribe registers fn for authentication changes. fn receives true after a
// sign-in and false after any kind of sign-out.
func (s *Store) Subscribe(fn func(authenticated bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// =============================================================================
// EXTERNAL CHANGES
// =============================================================================

// Watch follows the session file until ctx is done. Removing the file signs
// this process out; a file written by another process signs it in. Watch on a
// memory-only store returns immediately.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: the file itself is replaced by rename.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			s.handleEvent(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("session watcher error", "error", err)
		}
	}
}

func (s *Store) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		rec, subs := s.clear()
		if rec != nil {
			s.log.Info("session ended externally", "event", "SESSION_EXTERNAL_LOGOUT", "user", rec.User.Name)
			notify(subs, false)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		rec, ok, err := readFile(s.path)
		if err != nil || !ok {
			// A partial write shows up as Write before the final rename.
			return
		}
		s.mu.Lock()
		was := s.rec != nil
		changed := !was || s.rec.Token != rec.Token
		if changed {
			s.rec = &rec
		}
		subs := s.snapshotLocked()
		s.mu.Unlock()

		if changed {
			s.log.Info("session adopted from file", "event", "SESSION_EXTERNAL_LOGIN", "user", rec.User.Name)
		}
		if !was {
			notify(subs, true)
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) clear() (*Record, []func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rec
	s.rec = nil
	return rec, s.snapshotLocked()
}

func (s *Store) snapshotLocked() []func(bool) {
	out := make([]func(bool), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(bool), authenticated bool) {
	for _, fn := range subs {
		fn(authenticated)
	}
}
