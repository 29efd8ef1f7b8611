// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth is an Authenticator that accepts one password.
type fakeAuth struct {
	mu        sync.Mutex
	password  string
	logoutErr error
	revoked   []string
	issued    int
	// release, when set, holds Logout until it is closed.
	release chan struct{}
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if password != f.password {
		return Record{}, errors.New("bad credentials")
	}
	f.issued++
	return Record{
		Token: fmt.Sprintf("%s-token-%d", username, f.issued),
		User:  User{ID: "u1", Name: username, Role: "admin"},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.logoutErr
}

func (f *fakeAuth) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

// recorder collects subscriber notifications.
type recorder struct {
	mu  sync.Mutex
	got []bool
}

func (r *recorder) fn(authenticated bool) {
	r.mu.Lock()
	r.got = append(r.got, authenticated)
	r.mu.Unlock()
}

func (r *recorder) values() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.got...)
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func TestLoginLogoutMemoryOnly(t *testing.T) {
	auth := &fakeAuth{password: "secret"}
	s, err := Open("", auth)
	require.NoError(t, err)

	var rec recorder
	s.Subscribe(rec.fn)

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.Token())

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	assert.True(t, s.IsAuthenticated())
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "alice", cur.User.Name)
	assert.False(t, cur.IssuedAt.IsZero(), "IssuedAt is filled in when the server omits it")
	token := s.Token()

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, []string{token}, auth.revokedTokens())
	assert.Equal(t, []bool{true, false}, rec.values())
}

func TestLoginValidation(t *testing.T) {
	s, err := Open("", &fakeAuth{password: "secret"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{"empty user", "", "secret"},
		{"blank user", "   ", "secret"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Login(context.Background(), tt.user, tt.password)
			assert.ErrorIs(t, err, ErrMissingCredentials)
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestLoginFailureKeepsSignedOut(t *testing.T) {
	s, err := Open("", &fakeAuth{password: "secret"})
	require.NoError(t, err)

	var rec recorder
	s.Subscribe(rec.fn)

	err = s.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, rec.values())
}

func TestRepeatLoginNotifiesOnce(t *testing.T) {
	s, err := Open("", &fakeAuth{password: "secret"})
	require.NoError(t, err)

	var rec recorder
	s.Subscribe(rec.fn)

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	first := s.Token()
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	assert.NotEqual(t, first, s.Token(), "second login replaces the token")
	assert.Equal(t, []bool{true}, rec.values())
}

func TestLogoutRemoteFailureStillClearsLocal(t *testing.T) {
	auth := &fakeAuth{password: "secret", logoutErr: errors.New("connection refused")}
	s, err := Open("", auth)
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	err = s.Logout()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote logout")
	assert.False(t, s.IsAuthenticated())
}

func TestBackgroundLogoutDoesNotWaitForServer(t *testing.T) {
	auth := &fakeAuth{password: "secret", logoutErr: errors.New("timeout"), release: make(chan struct{})}
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := Open(path, auth)
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	var rec recorder
	s.Subscribe(rec.fn)

	bg := s.Background()
	require.True(t, bg.IsAuthenticated())

	done := make(chan error, 1)
	go func() { done <- bg.Logout() }()

	select {
	case err := <-done:
		require.NoError(t, err, "remote failure is only logged")
	case <-time.After(2 * time.Second):
		t.Fatal("Logout waited for the remote revoke")
	}

	assert.False(t, s.IsAuthenticated())
	assert.False(t, bg.IsAuthenticated())
	assert.Equal(t, []bool{false}, rec.values())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, auth.revokedTokens())

	close(auth.release)
	s.WaitRevoked()
	assert.Equal(t, []string{"alice-token-1"}, auth.revokedTokens())

	require.NoError(t, bg.Logout(), "second logout is a no-op")
	s.WaitRevoked()
	assert.Len(t, auth.revokedTokens(), 1)
}

func TestLogoutWhenSignedOutIsNoop(t *testing.T) {
	auth := &fakeAuth{password: "secret"}
	s, err := Open("", auth)
	require.NoError(t, err)

	var rec recorder
	s.Subscribe(rec.fn)

	require.NoError(t, s.Logout())
	s.Invalidate()
	assert.Empty(t, auth.revokedTokens())
	assert.Empty(t, rec.values())
}

func TestInvalidateSkipsRemote(t *testing.T) {
	auth := &fakeAuth{password: "secret"}
	s, err := Open("", auth)
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	var rec recorder
	s.Subscribe(rec.fn)

	s.Invalidate()
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, auth.revokedTokens())
	assert.Equal(t, []bool{false}, rec.values())
}

func TestUnsubscribe(t *testing.T) {
	s, err := Open("", &fakeAuth{password: "secret"})
	require.NoError(t, err)

	var rec recorder
	unsub := s.Subscribe(rec.fn)
	unsub()
	unsub()

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	assert.Empty(t, rec.values())
}

func TestSubscriberMayCallStore(t *testing.T) {
	s, err := Open("", &fakeAuth{password: "secret"})
	require.NoError(t, err)

	var seen []bool
	s.Subscribe(func(bool) {
		// Would deadlock if subscribers ran under the store lock.
		seen = append(seen, s.IsAuthenticated())
	})

	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	require.NoError(t, s.Logout())
	assert.Equal(t, []bool{true, false}, seen)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestPersistAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	auth := &fakeAuth{password: "secret"}

	s, err := Open(path, auth)
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored, err := Open(path, auth)
	require.NoError(t, err)
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, s.Token(), restored.Token())

	require.NoError(t, restored.Logout())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "logout removes the session file")
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Open(path, &fakeAuth{})
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt file is removed")
}

func TestOpenUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "record": {"token": "x"}}`), 0o600))

	s, err := Open(path, &fakeAuth{})
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestOpenNilAuthenticator(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatchExternalLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := Open(path, &fakeAuth{password: "secret"})
	require.NoError(t, err)
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))

	changes := make(chan bool, 4)
	s.Subscribe(func(a bool) { changes <- a })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case a := <-changes:
		assert.False(t, a)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after the session file was removed")
	}
	assert.False(t, s.IsAuthenticated())

	cancel()
	require.NoError(t, <-done)
}

func TestWatchExternalLogin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	auth := &fakeAuth{password: "secret"}
	watched, err := Open(path, auth)
	require.NoError(t, err)

	changes := make(chan bool, 4)
	watched.Subscribe(func(a bool) { changes <- a })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watched.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	other, err := Open(path, auth)
	require.NoError(t, err)
	require.NoError(t, other.Login(context.Background(), "bob", "secret"))

	select {
	case a := <-changes:
		assert.True(t, a)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification after another process signed in")
	}
	assert.Equal(t, other.Token(), watched.Token())
}

func TestWatchMemoryOnly(t *testing.T) {
	s, err := Open("", &fakeAuth{})
	require.NoError(t, err)
	assert.NoError(t, s.Watch(context.Background()))
}
