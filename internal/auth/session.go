package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

// DefaultSessionTTL is how long a login lasts when config does not say.
const DefaultSessionTTL = 7 * 24 * time.Hour

// errSessionInvalid is what every Resolve failure collapses to. Callers
// learn only that they must sign in again.
var errSessionInvalid = apperror.Unauthorized("session is invalid or has expired")

// SessionManager ties signed tokens to server-side session records.
type SessionManager struct {
	store  repository.SessionRepository
	tokens *TokenService
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive ttl uses
// DefaultSessionTTL.
func NewSessionManager(store repository.SessionRepository, tokens *TokenService, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{store: store, tokens: tokens, ttl: ttl, now: time.Now}
}

// TTL reports the lifetime given to new sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Start records a new session for accountID and returns its signed token.
func (m *SessionManager) Start(ctx context.Context, accountID string) (string, *model.Session, error) {
	now := m.now().UTC()
	sess := &model.Session{
		ID:        xid.New().String(),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("auth: creating session: %w", err)
	}

	token, err := m.tokens.Sign(sess.ID, accountID, now, sess.ExpiresAt)
	if err != nil {
		// don't leave an unreachable record behind
		m.store.DeleteSession(ctx, sess.ID)
		return "", nil, err
	}
	return token, sess, nil
}

// Resolve maps a token to its live session. It returns an Unauthorized
// AppError for bad signatures, ended sessions and expired sessions alike.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*model.Session, error) {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, errSessionInvalid
	}

	sess, err := m.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errSessionInvalid
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	if sess.AccountID != claims.AccountID || sess.Expired(m.now()) {
		return nil, errSessionInvalid
	}
	return sess, nil
}

// End deletes the session behind token. Ending an invalid or already ended
// session is not an error, so logout is always safe to repeat.
func (m *SessionManager) End(ctx context.Context, token string) error {
	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := m.store.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("auth: ending session: %w", err)
	}
	return nil
}

// RevokeAll ends every session of an account.
func (m *SessionManager) RevokeAll(ctx context.Context, accountID string) error {
	if err := m.store.DeleteAccountSessions(ctx, accountID); err != nil {
		return fmt.Errorf("auth: revoking sessions: %w", err)
	}
	return nil
}
