package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "session"

// contextKey is unexported so no other package can read or shadow the
// account stored in a request context.
type contextKey string

const accountKey contextKey = "account"

// AccountLookup is the slice of the account repository the middleware needs.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
}

// Authenticator resolves the session cookie into an account.
//
// The account is reloaded on every request, so a role change or deletion
// made by an admin applies to the very next request, not at next login.
type Authenticator struct {
	sessions *SessionManager
	accounts AccountLookup
}

func NewAuthenticator(sessions *SessionManager, accounts AccountLookup) *Authenticator {
	return &Authenticator{sessions: sessions, accounts: accounts}
}

// RequireAuth rejects requests without a live session with 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := a.authenticate(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "sign in to continue")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := a.authenticate(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "sign in to continue")
			return
		}
		if !account.IsAdmin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "administrator access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// OptionalAuth attaches the account when a live session is present and
// otherwise lets the request through anonymously. Public pages use it to
// mark the visitor's own candles.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account, err := a.authenticate(r); err == nil {
			r = r.WithContext(WithAccount(r.Context(), account))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*model.Account, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	sess, err := a.sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	account, err := a.accounts.GetAccountByID(r.Context(), sess.AccountID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errSessionInvalid
		}
		return nil, err
	}
	return account, nil
}

// WithAccount returns a copy of ctx carrying account.
func WithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the signed-in account, or (nil, false) for an
// anonymous request.
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountKey).(*model.Account)
	return account, ok && account != nil
}

// SetSessionCookie writes the session cookie. secure should be true
// whenever the site is served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError mirrors the handler package's error body. It lives here
// because the middleware runs before any handler is chosen.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
