package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession stores a session whose ID the caller has already chosen.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.AccountID, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session for account %s: %w", s.AccountID, err)
	}
	return nil
}

func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, account_id, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.AccountID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	return &s, nil
}

// DeleteSession is idempotent: deleting an unknown session is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

func (db *DB) DeleteAccountSessions(ctx context.Context, accountID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("sqlite: deleting sessions of account %s: %w", accountID, err)
	}
	return nil
}
