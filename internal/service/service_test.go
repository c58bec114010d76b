package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository/memory"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================
//
// Every service runs against the in-memory store, which implements the
// same repository interfaces as SQLite. bcrypt runs at its minimum cost so
// the suite stays fast.

type testEnv struct {
	store    *memory.Store
	sessions *auth.SessionManager
	accounts *AccountService
	tributes *TributeService
	content  *ContentService
	gallery  *GalleryService
	files    *memFiles
	observer *countingObserver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	tokens, err := auth.NewTokenService("service-test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	sessions := auth.NewSessionManager(store, tokens, time.Hour)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	obs := &countingObserver{}
	files := &memFiles{files: map[string][]byte{}}

	return &testEnv{
		store:    store,
		sessions: sessions,
		accounts: NewAccountService(store, sessions, passwords, obs, logger),
		tributes: NewTributeService(store, obs, logger),
		content:  NewContentService(store, store, logger),
		gallery:  NewGalleryService(store, files, logger),
		files:    files,
		observer: obs,
	}
}

// register creates a member account through the service.
func (e *testEnv) register(t *testing.T, username string) *model.Account {
	t.Helper()
	a, err := e.accounts.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "password-" + username,
		Name:     "Name " + username,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return a
}

// admin creates an admin account directly in the store.
func (e *testEnv) admin(t *testing.T, username string) *model.Account {
	t.Helper()
	a := &model.Account{Username: username, PasswordHash: "x", Name: "Admin " + username, IsAdmin: true}
	if err := e.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("creating admin %s: %v", username, err)
	}
	return a
}

// countingObserver records domain events. Toggles fire it from many
// goroutines at once, so every method takes mu.
type countingObserver struct {
	mu                                  sync.Mutex
	logins, failedLogins, registrations int
	created, deleted                    int
	lit, unlit                          int
	uploads                             map[string]int
}

func (o *countingObserver) LoginAttempt(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.logins++
	} else {
		o.failedLogins++
	}
}

func (o *countingObserver) AccountRegistered() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registrations++
}

func (o *countingObserver) TributeCreated() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *countingObserver) TributeDeleted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted++
}

func (o *countingObserver) CandleToggled(lit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if lit {
		o.lit++
	} else {
		o.unlit++
	}
}

func (o *countingObserver) FileUploaded(category string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.uploads == nil {
		o.uploads = map[string]int{}
	}
	o.uploads[category]++
}
