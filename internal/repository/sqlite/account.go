package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, username, password_hash, name, email, is_admin, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }, a *model.Account) error {
	return row.Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.Name,
		&a.Email,
		&a.IsAdmin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
}

// CreateAccount inserts a new account, filling in ID and timestamps.
// The UNIQUE constraint on username turns a duplicate into a Conflict.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	now := time.Now().UTC()
	account.ID = xid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Username,
		account.PasswordHash,
		account.Name,
		account.Email,
		account.IsAdmin,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Username)
		}
		return fmt.Errorf("sqlite: inserting account %q: %w", account.Username, err)
	}
	return nil
}

// GetAccountByID retrieves an account by its internal ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id), &a)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return &a, nil
}

// GetAccountByUsername looks up an account by exact (case-sensitive) username.
func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username), &a)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", username)
		}
		return nil, fmt.Errorf("sqlite: getting account %q: %w", username, err)
	}
	return &a, nil
}

// ListAccounts returns accounts oldest first.
func (db *DB) ListAccounts(ctx context.Context, opts repository.ListOptions) ([]model.Account, error) {
	opts = opts.Normalize()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 ORDER BY created_at ASC, id ASC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0, opts.Limit)
	for rows.Next() {
		var a model.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("sqlite: scanning account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating accounts: %w", err)
	}
	return accounts, nil
}

func (db *DB) UpdateAccountRole(ctx context.Context, id string, isAdmin bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET is_admin = ?, updated_at = ? WHERE id = ?`,
		isAdmin, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating role of account %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("account", id))
}

func (db *DB) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of account %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("account", id))
}

// DeleteAccount removes an account and everything that references it.
//
// Order matters for the foreign keys and for the candle counts:
//  1. decrement every tribute this account lit a candle on
//  2. delete the account's candles
//  3. delete other accounts' candles on this account's tributes
//  4. delete the account's tributes, sessions, then the account
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("account", id)
		}
		if err != nil {
			return fmt.Errorf("sqlite: checking account %s: %w", id, err)
		}

		steps := []struct {
			what string
			sql  string
		}{
			{"decrementing candle counts", `
				UPDATE tributes SET candle_count = MAX(candle_count - 1, 0)
				WHERE id IN (SELECT tribute_id FROM candles WHERE account_id = ?)`},
			{"deleting own candles", `DELETE FROM candles WHERE account_id = ?`},
			{"deleting candles on own tributes", `
				DELETE FROM candles
				WHERE tribute_id IN (SELECT id FROM tributes WHERE account_id = ?)`},
			{"deleting tributes", `DELETE FROM tributes WHERE account_id = ?`},
			{"deleting sessions", `DELETE FROM sessions WHERE account_id = ?`},
			{"deleting account", `DELETE FROM accounts WHERE id = ?`},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, s.sql, id); err != nil {
				return fmt.Errorf("sqlite: %s for account %s: %w", s.what, id, err)
			}
		}
		return nil
	})
}
