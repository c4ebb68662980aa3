package services

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"securesign/internal/repositories"
	"securesign/internal/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sentEmail struct {
	kind  string
	to    string
	value string
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentEmail
	fail map[string]bool
}

func newFakeEmailService() *fakeEmailService {
	return &fakeEmailService{fail: map[string]bool{}}
}

func (f *fakeEmailService) record(kind, to, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[kind] {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, sentEmail{kind: kind, to: to, value: value})
	return nil
}

func (f *fakeEmailService) SendVerificationEmail(email, code string) error {
	return f.record("verification", email, code)
}

func (f *fakeEmailService) SendWelcomeEmail(email, name string) error {
	return f.record("welcome", email, name)
}

func (f *fakeEmailService) SendPasswordResetEmail(email, resetURL string) error {
	return f.record("reset", email, resetURL)
}

func (f *fakeEmailService) SendResetSuccessEmail(email string) error {
	return f.record("reset_success", email, "")
}

func (f *fakeEmailService) failOn(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = true
}

func (f *fakeEmailService) byKind(kind string) []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEmail
	for _, e := range f.sent {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc      UserService
	repo     repositories.UserRepository
	emails   *fakeEmailService
	clock    *fakeClock
	auth     AuthService
	sessions SessionService
}

type envOption func(*UserServiceOptions, *testEnvDeps)

type testEnvDeps struct {
	revoked repositories.SessionRevocationRepository
}

func withHiddenAccounts() envOption {
	return func(o *UserServiceOptions, _ *testEnvDeps) { o.HideAccountExistence = true }
}

func withRevocation(r repositories.SessionRevocationRepository) envOption {
	return func(_ *UserServiceOptions, d *testEnvDeps) { d.revoked = r }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	clock := newFakeClock()
	repo := repositories.NewMemoryUserRepository()
	emails := newFakeEmailService()
	auth := NewAuthService(bcrypt.MinCost)

	o := UserServiceOptions{
		ClientURL: "http://localhost:5173/",
		Now:       clock.Now,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	deps := &testEnvDeps{}
	for _, opt := range opts {
		opt(&o, deps)
	}
	sessions := NewSessionService([]byte("test-secret"), time.Hour, deps.revoked, clock.Now)

	return &testEnv{
		svc:      NewUserService(repo, emails, auth, sessions, utils.NewTokenGenerator(0, 0), o),
		repo:     repo,
		emails:   emails,
		clock:    clock,
		auth:     auth,
		sessions: sessions,
	}
}
