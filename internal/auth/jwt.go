// Package auth issues and checks the signed session token carried in the
// "session" cookie.
//
// SESSION FLOW:
//  1. POST /api/auth/login verifies the password and creates a session
//     record (id, account, expiry) in the session store.
//  2. The server signs a JWT whose "jti" is the session id and whose "sub"
//     is the account id, and sets it as an HttpOnly cookie.
//  3. On each request the middleware verifies the signature, then looks the
//     session up. A missing record means the session was ended (logout or
//     password reset) even though the token itself is still well formed.
//
// The signature stops clients from forging session ids; the server-side
// record is what makes logout and revocation take effect immediately.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "memorial"

// TokenService signs and verifies session tokens with HMAC-SHA256.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; production deployments should use 32 random bytes.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// TokenClaims are the parts of a verified token the server cares about.
type TokenClaims struct {
	SessionID string
	AccountID string
	ExpiresAt time.Time
}

// Sign creates a token for the given session.
func (s *TokenService) Sign(sessionID, accountID string, issuedAt, expiresAt time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		ID:        sessionID,
		Subject:   accountID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer and expiry of tokenStr.
//
// jwt.WithValidMethods pins HS256 so a token claiming "alg":"none" (or an
// RSA algorithm keyed with our secret) is rejected.
func (s *TokenService) Verify(tokenStr string) (*TokenClaims, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.ID == "" || c.Subject == "" {
		return nil, fmt.Errorf("auth: token missing session or account")
	}

	return &TokenClaims{
		SessionID: c.ID,
		AccountID: c.Subject,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
