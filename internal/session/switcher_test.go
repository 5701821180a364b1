package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/olegiv/wordbook-go/internal/identity"
)

type recordedCall struct {
	what  string // "migrate", "flush:<kind>" or kind name
	owner identity.Owner
}

type fakeRepo struct {
	kind  string
	log   *callLog
	fail  error
	owner identity.Owner
}

func (r *fakeRepo) Kind() string { return r.kind }

func (r *fakeRepo) Flush(context.Context) error {
	r.log.add(recordedCall{what: "flush:" + r.kind})
	return nil
}

func (r *fakeRepo) SetOwner(_ context.Context, owner identity.Owner) error {
	r.owner = owner
	r.log.add(recordedCall{what: r.kind, owner: owner})
	return r.fail
}

type fakeMigrator struct {
	log  *callLog
	fail error
}

func (m *fakeMigrator) OnLogin(_ context.Context, uid, email string) error {
	m.log.add(recordedCall{what: "migrate", owner: identity.Authenticated(uid, email)})
	return m.fail
}

type callLog struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (l *callLog) add(c recordedCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) snapshot() []recordedCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedCall{}, l.calls...)
}

func setup(t *testing.T) (*identity.Provider, *callLog, *fakeRepo, *fakeRepo, *fakeMigrator, *Switcher) {
	t.Helper()
	log := &callLog{}
	provider := identity.NewProvider()
	vocab := &fakeRepo{kind: "vocabulary", log: log}
	articles := &fakeRepo{kind: "articles", log: log}
	migrator := &fakeMigrator{log: log}

	s := NewSwitcher(provider, migrator, slog.Default(), vocab, articles)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return provider, log, vocab, articles, migrator, s
}

func TestLoginMigratesThenSwitches(t *testing.T) {
	provider, log, vocab, articles, _, _ := setup(t)

	if err := provider.SignIn("u1", "u1@example.com"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	calls := log.snapshot()
	if len(calls) != 5 {
		t.Fatalf("calls = %v, want 2 flushes + migrate + 2 switches", calls)
	}
	if calls[0].what != "flush:vocabulary" || calls[1].what != "flush:articles" {
		t.Errorf("calls = %v, want every repository flushed before migration", calls)
	}
	if calls[2].what != "migrate" {
		t.Errorf("calls[2] = %q, want migrate after flushes and before any switch", calls[2].what)
	}
	if vocab.owner.UserID != "u1" || articles.owner.UserID != "u1" {
		t.Errorf("repositories not switched: %v / %v", vocab.owner, articles.owner)
	}
}

func TestRepeatedAuthenticatedEventDoesNotReMigrate(t *testing.T) {
	provider, log, _, _, _, _ := setup(t)

	_ = provider.SignIn("u1", "")
	_ = provider.SignIn("u1", "")

	migrations := 0
	for _, c := range log.snapshot() {
		if c.what == "migrate" {
			migrations++
		}
	}
	if migrations != 1 {
		t.Errorf("migrations = %d, want exactly 1 per fresh login", migrations)
	}
}

func TestAccountSwitchDoesNotMigrate(t *testing.T) {
	provider, log, vocab, _, _, _ := setup(t)

	_ = provider.SignIn("u1", "")
	_ = provider.SignIn("u2", "")

	migrations := 0
	for _, c := range log.snapshot() {
		if c.what == "migrate" {
			migrations++
		}
	}
	if migrations != 1 {
		t.Errorf("migrations = %d; authenticated-to-authenticated must not migrate", migrations)
	}
	if vocab.owner.UserID != "u2" {
		t.Errorf("repository owner = %v, want u2", vocab.owner)
	}
}

func TestLogoutSwitchesWithoutMigration(t *testing.T) {
	provider, log, vocab, _, _, _ := setup(t)

	_ = provider.SignIn("u1", "")
	provider.SignOut()

	if !vocab.owner.IsAnonymous() {
		t.Errorf("repository owner after logout = %v, want anonymous", vocab.owner)
	}

	migrations := 0
	for _, c := range log.snapshot() {
		if c.what == "migrate" {
			migrations++
		}
	}
	if migrations != 1 {
		t.Errorf("migrations = %d, logout must not migrate", migrations)
	}

	// Logging in again after a logout is a fresh edge and migrates again.
	_ = provider.SignIn("u1", "")
	migrations = 0
	for _, c := range log.snapshot() {
		if c.what == "migrate" {
			migrations++
		}
	}
	if migrations != 2 {
		t.Errorf("migrations = %d, want 2 after a second fresh login", migrations)
	}
}

func TestMigrationFailureStillSwitches(t *testing.T) {
	log := &callLog{}
	provider := identity.NewProvider()
	vocab := &fakeRepo{kind: "vocabulary", log: log}
	migrator := &fakeMigrator{log: log, fail: errors.New("batch write failed")}

	s := NewSwitcher(provider, migrator, slog.Default(), vocab)
	s.Start(context.Background())
	defer s.Stop()

	_ = provider.SignIn("u1", "")
	if vocab.owner.UserID != "u1" {
		t.Errorf("repository must switch even when migration fails, got %v", vocab.owner)
	}
}

func TestNilMigratorIsAllowed(t *testing.T) {
	log := &callLog{}
	provider := identity.NewProvider()
	vocab := &fakeRepo{kind: "vocabulary", log: log}

	s := NewSwitcher(provider, nil, slog.Default(), vocab)
	s.Start(context.Background())
	defer s.Stop()

	_ = provider.SignIn("u1", "")
	if vocab.owner.UserID != "u1" {
		t.Errorf("owner = %v, want u1", vocab.owner)
	}
}
