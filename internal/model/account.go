// Package model defines the data structures shared by every layer of the
// memorial backend. Structs here carry no behaviour beyond small helpers;
// rules live in the service package.
package model

import "time"

// Account is a registered visitor. Accounts are created by self-service
// registration (never admin) and promoted by an existing admin.
//
// PasswordHash is a bcrypt string and never leaves the server: the json:"-"
// tag keeps it out of every API response.
type Account struct {
	ID           string    `json:"id"          db:"id"`
	Username     string    `json:"username"    db:"username"`
	PasswordHash string    `json:"-"           db:"password_hash"`
	Name         string    `json:"name"        db:"name"`
	Email        string    `json:"email"       db:"email"` // optional, may be empty
	IsAdmin      bool      `json:"isAdmin"     db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}

// Session binds a signed cookie token to an account. The record is the
// source of truth: deleting it logs the holder out even if their token
// has not expired yet.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
