package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

// =========================================================================
// SIGN / VERIFY
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()

	token, err := ts.Sign("sess-1", "acct-1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	c, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if c.SessionID != "sess-1" || c.AccountID != "acct-1" {
		t.Errorf("Verify() = %+v, want sess-1/acct-1", c)
	}
}

func TestVerify_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")
	now := time.Now()

	valid, _ := ts.Sign("sess-1", "acct-1", now, now.Add(time.Hour))
	expired, _ := ts.Sign("sess-1", "acct-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	foreign, _ := other.Sign("sess-1", "acct-1", now, now.Add(time.Hour))
	noSession, _ := ts.Sign("", "acct-1", now, now.Add(time.Hour))

	// an unsigned token must never be accepted
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID:        "sess-1",
		Subject:   "acct-1",
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building alg=none token: %v", err)
	}

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "sess-1",
		Subject:   "acct-1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("test-secret-at-least-16-chars!!"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", valid[:len(valid)-3] + "xxx"},
		{"expired", expired},
		{"signed with another secret", foreign},
		{"missing session id", noSession},
		{"alg none", none},
		{"wrong issuer", wrongIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Verify(tt.token); err == nil {
				t.Errorf("Verify(%s) succeeded, want error", tt.name)
			}
		})
	}
}
