package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/auth"
)

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_CreatesMember(t *testing.T) {
	env := newTestEnv(t)

	a, err := env.accounts.Register(context.Background(), RegisterInput{
		Username: "  alice ",
		Password: "s3cret!",
		Name:     "Alice Smith",
		Email:    "alice@example.com",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if a.Username != "alice" {
		t.Errorf("Username = %q, want trimmed %q", a.Username, "alice")
	}
	if a.IsAdmin {
		t.Error("self-registered account must not be admin")
	}
	if a.PasswordHash == "s3cret!" || a.PasswordHash == "" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", a.PasswordHash)
	}
	if env.observer.registrations != 1 {
		t.Errorf("registrations = %d, want 1", env.observer.registrations)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")

	_, err := env.accounts.Register(context.Background(), RegisterInput{
		Username: "alice", Password: "another-pass", Name: "Alice Two",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        RegisterInput
		wantField string
	}{
		{"empty username", RegisterInput{Username: "", Password: "secret1", Name: "N"}, "username"},
		{"username with space", RegisterInput{Username: "al ice", Password: "secret1", Name: "N"}, "username"},
		{"username too long", RegisterInput{Username: strings.Repeat("a", MaxUsernameLength+1), Password: "secret1", Name: "N"}, "username"},
		{"empty password", RegisterInput{Username: "alice", Password: "", Name: "N"}, "password"},
		{"short password", RegisterInput{Username: "alice", Password: "12345", Name: "N"}, "password"},
		{"password over 72 bytes", RegisterInput{Username: "alice", Password: strings.Repeat("p", 73), Name: "N"}, "password"},
		{"empty name", RegisterInput{Username: "alice", Password: "secret1", Name: "   "}, "name"},
		{"bad email", RegisterInput{Username: "alice", Password: "secret1", Name: "N", Email: "not-an-email"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.accounts.Register(context.Background(), tt.in)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

// =========================================================================
// LOGIN / LOGOUT
// =========================================================================

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice")

	res, err := env.accounts.Login(ctx, "alice", "password-alice")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Account.ID != a.ID || res.Token == "" {
		t.Errorf("Login() = %+v", res)
	}

	sess, err := env.sessions.Resolve(ctx, res.Token)
	if err != nil {
		t.Fatalf("Resolve(token) error = %v", err)
	}
	if sess.AccountID != a.ID {
		t.Errorf("session account = %q, want %q", sess.AccountID, a.ID)
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	_, wrongPass := env.accounts.Login(ctx, "alice", "wrong-password")
	_, unknownUser := env.accounts.Login(ctx, "nobody", "password-alice")

	for _, err := range []error{wrongPass, unknownUser} {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
		}
	}
	if wrongPass.Error() != unknownUser.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass, unknownUser)
	}
	if env.observer.failedLogins != 2 {
		t.Errorf("failedLogins = %d, want 2", env.observer.failedLogins)
	}
}

// countingHasher wraps a real hasher and counts Verify calls.
type countingHasher struct {
	PasswordHasher
	verifies int
}

func (h *countingHasher) Verify(hash, plaintext string) error {
	h.verifies++
	return h.PasswordHasher.Verify(hash, plaintext)
}

func TestLogin_UnknownUserStillComparesPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	hasher := &countingHasher{PasswordHasher: auth.NewPasswordServiceForTest(bcrypt.MinCost)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := NewAccountService(env.store, env.sessions, hasher, nil, logger)

	tests := []struct {
		name     string
		username string
	}{
		{"wrong password", "alice"},
		{"unknown username", "nobody"},
		{"unknown username again", "nobody-else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := hasher.verifies
			if _, err := accounts.Login(ctx, tt.username, "wrong-password"); !errors.Is(err, apperror.ErrUnauthorized) {
				t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
			}
			if got := hasher.verifies - before; got != 1 {
				t.Errorf("Verify called %d times, want 1", got)
			}
		})
	}
}

func TestLogout_EndsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register(t, "alice")
	res, _ := env.accounts.Login(ctx, "alice", "password-alice")

	if err := env.accounts.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := env.sessions.Resolve(ctx, res.Token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Resolve() after logout error = %v, want ErrUnauthorized", err)
	}
	if err := env.accounts.Logout(ctx, res.Token); err != nil {
		t.Errorf("second Logout() error = %v, want nil", err)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "alice")

	if got, err := env.accounts.Me(a); err != nil || got.ID != a.ID {
		t.Errorf("Me(alice) = %v, %v", got, err)
	}
	if _, err := env.accounts.Me(nil); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Me(nil) error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// ADMIN OPERATIONS
// =========================================================================

func TestAdminOperations_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	member := env.register(t, "member")
	other := env.register(t, "other")

	checks := map[string]error{}
	_, checks["ListAccounts"] = env.accounts.ListAccounts(ctx, member, 0, 0)
	_, checks["UpdateRole"] = env.accounts.UpdateRole(ctx, member, other.ID, true)
	checks["ResetPassword"] = env.accounts.ResetPassword(ctx, member, other.ID, "newpass1")
	checks["DeleteAccount"] = env.accounts.DeleteAccount(ctx, member, other.ID)

	for op, err := range checks {
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("%s by member error = %v, want ErrForbidden", op, err)
		}
	}

	if _, err := env.accounts.ListAccounts(ctx, nil, 0, 0); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ListAccounts(anonymous) error = %v, want ErrUnauthorized", err)
	}
}

func TestListAccounts_Pagination(t *testing.T) {
	env := newTestEnv(t)
	admin := env.admin(t, "root")
	for _, name := range []string{"a1", "a2", "a3"} {
		env.register(t, name)
	}

	all, err := env.accounts.ListAccounts(context.Background(), admin, 0, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("ListAccounts() = %d accounts, %v; want 4", len(all), err)
	}
	page, _ := env.accounts.ListAccounts(context.Background(), admin, 2, 3)
	if len(page) != 1 {
		t.Errorf("ListAccounts(limit 2, offset 3) = %d accounts, want 1", len(page))
	}
}

func TestUpdateRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t, "root")
	member := env.register(t, "member")

	got, err := env.accounts.UpdateRole(ctx, admin, member.ID, true)
	if err != nil {
		t.Fatalf("UpdateRole(promote) error = %v", err)
	}
	if !got.IsAdmin {
		t.Error("promoted account is not admin")
	}

	if _, err := env.accounts.UpdateRole(ctx, admin, admin.ID, false); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("self-demotion error = %v, want ErrForbidden", err)
	}
	if _, err := env.accounts.UpdateRole(ctx, admin, "missing", true); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateRole(missing) error = %v, want ErrNotFound", err)
	}
}

func TestResetPassword_RevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t, "root")
	env.register(t, "alice")
	res, _ := env.accounts.Login(ctx, "alice", "password-alice")

	if err := env.accounts.ResetPassword(ctx, admin, res.Account.ID, "brand-new-pass"); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}

	if _, err := env.sessions.Resolve(ctx, res.Token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("old session still valid after reset: %v", err)
	}
	if _, err := env.accounts.Login(ctx, "alice", "password-alice"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("old password still works: %v", err)
	}
	if _, err := env.accounts.Login(ctx, "alice", "brand-new-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	if err := env.accounts.ResetPassword(ctx, admin, res.Account.ID, "123"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ResetPassword(short) error = %v, want ErrValidation", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t, "root")
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	bobTribute, _ := env.tributes.CreateTribute(ctx, bob, CreateTributeInput{Content: "for her"})
	env.tributes.ToggleCandle(ctx, alice, bobTribute.ID)

	if err := env.accounts.DeleteAccount(ctx, admin, admin.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("self-delete error = %v, want ErrForbidden", err)
	}
	if err := env.accounts.DeleteAccount(ctx, admin, alice.ID); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	got, err := env.store.GetTribute(ctx, bobTribute.ID)
	if err != nil {
		t.Fatalf("GetTribute() error = %v", err)
	}
	if got.CandleCount != 0 {
		t.Errorf("CandleCount after deleting the candle's owner = %d, want 0", got.CandleCount)
	}
	if err := env.accounts.DeleteAccount(ctx, admin, alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteAccount() error = %v, want ErrNotFound", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.accounts.EnsureAdmin(ctx, "root", "bootstrap-pass", "")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin() = %v, %v; want created", created, err)
	}
	created, err = env.accounts.EnsureAdmin(ctx, "root", "bootstrap-pass", "")
	if err != nil || created {
		t.Errorf("second EnsureAdmin() = %v, %v; want no change", created, err)
	}

	res, err := env.accounts.Login(ctx, "root", "bootstrap-pass")
	if err != nil || !res.Account.IsAdmin {
		t.Fatalf("bootstrap admin login = %+v, %v", res, err)
	}

	env.register(t, "carol")
	promoted, err := env.accounts.EnsureAdmin(ctx, "carol", "", "")
	if err != nil || !promoted {
		t.Errorf("EnsureAdmin(existing member) = %v, %v; want promoted", promoted, err)
	}

	if changed, err := env.accounts.EnsureAdmin(ctx, "", "", ""); err != nil || changed {
		t.Errorf("EnsureAdmin(empty) = %v, %v; want disabled", changed, err)
	}
}
