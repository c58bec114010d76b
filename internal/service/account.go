package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

const (
	MaxUsernameLength = 50
	MaxNameLength     = 100
	MaxEmailLength    = 254
)

// PasswordHasher is the part of auth.PasswordService the account service
// uses.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// dummyPassword is hashed once per service and checked against when the
// username is unknown, so that path costs one bcrypt comparison like a
// wrong password does.
const dummyPassword = "memorial-login-timing-equalizer"

// AccountService owns registration, login and the admin account tools.
type AccountService struct {
	accounts  repository.AccountRepository
	sessions  *auth.SessionManager
	passwords PasswordHasher
	observer  Observer
	logger    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(
	accounts repository.AccountRepository,
	sessions *auth.SessionManager,
	passwords PasswordHasher,
	observer Observer,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		sessions:  sessions,
		passwords: passwords,
		observer:  observerOrNop(observer),
		logger:    logger,
	}
}

// RegisterInput is what a visitor submits to create an account. It has no
// admin field: self-registered accounts are never admins.
type RegisterInput struct {
	Username string
	Password string
	Name     string
	Email    string
}

// LoginResult bundles the account and its new session so the handler can
// set the cookie and respond in one step.
type LoginResult struct {
	Account   *model.Account
	Token     string
	ExpiresAt time.Time
}

func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return apperror.ValidationFailed("username", "username must not contain spaces")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}
	if utf8.RuneCountInString(password) < auth.MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > MaxEmailLength || !strings.Contains(email, "@") || strings.ContainsAny(email, " \t\r\n") {
		return apperror.ValidationFailed("email", "invalid email format")
	}
	return nil
}

// Register creates a non-admin account.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	username := strings.TrimSpace(in.Username)
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	account := &model.Account{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Email:        email,
		IsAdmin:      false,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("account", username)
		}
		return nil, fmt.Errorf("service/account: creating account: %w", err)
	}

	s.observer.AccountRegistered()
	s.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("username", account.Username),
	)
	return account, nil
}

// errInvalidCredentials never says whether the username or the password
// was wrong.
var errInvalidCredentials = apperror.Unauthorized("invalid credentials")

// Login checks the password and starts a session.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.observer.LoginAttempt(false)
		return nil, errInvalidCredentials
	}

	account, err := s.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.verifyDummy(password)
			s.observer.LoginAttempt(false)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("service/account: loading account: %w", err)
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("password check failed",
				slog.String("accountID", account.ID),
				slog.String("error", err.Error()),
			)
		}
		s.observer.LoginAttempt(false)
		return nil, errInvalidCredentials
	}

	token, sess, err := s.sessions.Start(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: %w", err)
	}

	s.observer.LoginAttempt(true)
	s.logger.Info("account signed in", slog.String("accountID", account.ID))
	return &LoginResult{Account: account, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// verifyDummy spends one password comparison on a hash made at the
// service's own cost. The result is discarded.
func (s *AccountService) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.passwords.Hash(dummyPassword)
		if err != nil {
			s.logger.Error("hashing dummy password", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_ = s.passwords.Verify(s.dummyHash, password)
}

// Logout ends the session behind token. It is safe to call repeatedly.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.End(ctx, token)
}

// Me returns the signed-in account.
func (s *AccountService) Me(actor *model.Account) (*model.Account, error) {
	if err := requireAccount(actor); err != nil {
		return nil, err
	}
	return actor, nil
}

// =========================================================================
// ADMIN
// =========================================================================

func (s *AccountService) ListAccounts(ctx context.Context, actor *model.Account, limit, offset int) ([]model.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListAccounts(ctx, listOptions(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("service/account: listing accounts: %w", err)
	}
	return accounts, nil
}

// UpdateRole grants or removes admin rights. An admin cannot demote
// themself, which guarantees the site keeps at least the acting admin.
func (s *AccountService) UpdateRole(ctx context.Context, actor *model.Account, targetID string, isAdmin bool) (*model.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetAccountByID(ctx, targetID); err != nil {
		return nil, err
	}
	if targetID == actor.ID && !isAdmin {
		return nil, apperror.Forbidden("you cannot remove your own admin role")
	}

	if err := s.accounts.UpdateAccountRole(ctx, targetID, isAdmin); err != nil {
		return nil, fmt.Errorf("service/account: updating role: %w", err)
	}

	s.logger.Info("account role changed",
		slog.String("actorID", actor.ID),
		slog.String("accountID", targetID),
		slog.Bool("isAdmin", isAdmin),
	)
	return s.accounts.GetAccountByID(ctx, targetID)
}

// ResetPassword sets a new password and signs the account out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, actor *model.Account, targetID, newPassword string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if _, err := s.accounts.GetAccountByID(ctx, targetID); err != nil {
		return err
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("service/account: %w", err)
	}
	if err := s.accounts.UpdateAccountPassword(ctx, targetID, hash); err != nil {
		return fmt.Errorf("service/account: updating password: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, targetID); err != nil {
		return fmt.Errorf("service/account: %w", err)
	}

	s.logger.Info("account password reset",
		slog.String("actorID", actor.ID),
		slog.String("accountID", targetID),
	)
	return nil
}

// DeleteAccount removes an account with its tributes, candles and sessions.
func (s *AccountService) DeleteAccount(ctx context.Context, actor *model.Account, targetID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.accounts.GetAccountByID(ctx, targetID); err != nil {
		return err
	}
	if targetID == actor.ID {
		return apperror.Forbidden("you cannot delete your own account")
	}

	if err := s.accounts.DeleteAccount(ctx, targetID); err != nil {
		return fmt.Errorf("service/account: deleting account: %w", err)
	}
	// Sessions may live outside the main store (Redis).
	if err := s.sessions.RevokeAll(ctx, targetID); err != nil {
		return fmt.Errorf("service/account: %w", err)
	}

	s.logger.Info("account deleted",
		slog.String("actorID", actor.ID),
		slog.String("accountID", targetID),
	)
	return nil
}

// EnsureAdmin makes sure an admin account named username exists, creating
// it with the given password or promoting an existing account. It reports
// whether anything changed. An empty username disables the bootstrap.
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password, name string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}

	existing, err := s.accounts.GetAccountByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return false, nil
		}
		if err := s.accounts.UpdateAccountRole(ctx, existing.ID, true); err != nil {
			return false, fmt.Errorf("service/account: promoting %s: %w", username, err)
		}
		s.logger.Info("bootstrap admin promoted", slog.String("username", username))
		return true, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return false, fmt.Errorf("service/account: loading %s: %w", username, err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Administrator"
	}
	if err := validateUsername(username); err != nil {
		return false, err
	}
	if err := validatePassword(password); err != nil {
		return false, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return false, fmt.Errorf("service/account: %w", err)
	}
	account := &model.Account{Username: username, PasswordHash: hash, Name: name, IsAdmin: true}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return false, fmt.Errorf("service/account: creating admin: %w", err)
	}

	s.logger.Info("bootstrap admin created",
		slog.String("accountID", account.ID),
		slog.String("username", username),
	)
	return true, nil
}
