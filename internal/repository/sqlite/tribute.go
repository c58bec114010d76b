package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var _ repository.TributeRepository = (*DB)(nil)

const tributeSelect = `
	SELECT t.id, t.account_id, COALESCE(a.name, ''), t.content, t.media_url, t.media_kind,
	       t.candle_count, t.created_at
	FROM tributes t
	LEFT JOIN accounts a ON a.id = t.account_id`

func scanTribute(row interface{ Scan(...any) error }, t *model.Tribute) error {
	var kind string
	if err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.AuthorName,
		&t.Content,
		&t.MediaURL,
		&kind,
		&t.CandleCount,
		&t.CreatedAt,
	); err != nil {
		return err
	}
	t.MediaKind = model.MediaKind(kind)
	return nil
}

// CreateTribute inserts a tribute with a zero candle count.
func (db *DB) CreateTribute(ctx context.Context, t *model.Tribute) error {
	t.ID = xid.New().String()
	t.CreatedAt = time.Now().UTC()
	t.CandleCount = 0

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tributes (id, account_id, content, media_url, media_kind, candle_count, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		t.ID,
		t.AccountID,
		t.Content,
		t.MediaURL,
		string(t.MediaKind),
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating tribute: %w", err)
	}
	return nil
}

func (db *DB) GetTribute(ctx context.Context, id string) (*model.Tribute, error) {
	var t model.Tribute
	err := scanTribute(db.conn.QueryRowContext(ctx, tributeSelect+` WHERE t.id = ?`, id), &t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tribute", id)
		}
		return nil, fmt.Errorf("sqlite: getting tribute %s: %w", id, err)
	}
	return &t, nil
}

// ListTributes returns a page of tributes, newest first.
func (db *DB) ListTributes(ctx context.Context, opts repository.ListOptions) ([]model.Tribute, error) {
	opts = opts.Normalize()

	rows, err := db.conn.QueryContext(ctx,
		tributeSelect+` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tributes: %w", err)
	}
	defer rows.Close()

	tributes := make([]model.Tribute, 0, opts.Limit)
	for rows.Next() {
		var t model.Tribute
		if err := scanTribute(rows, &t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tribute row: %w", err)
		}
		tributes = append(tributes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tributes: %w", err)
	}
	return tributes, nil
}

// DeleteTribute removes the tribute's candles first, then the tribute,
// inside one transaction.
func (db *DB) DeleteTribute(ctx context.Context, id string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE tribute_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting candles of tribute %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tributes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting tribute %s: %w", id, err)
		}
		return checkAffected(res, apperror.NotFound("tribute", id))
	})
}

// ToggleCandle lights or puts out the account's candle on a tribute.
//
// The current state is decided by the DELETE itself rather than by a prior
// SELECT: if a row was removed the candle was lit, otherwise we insert.
// The insert uses ON CONFLICT DO NOTHING against UNIQUE(account_id,
// tribute_id), and the count only moves when a row actually changed, so a
// duplicate request can never count twice. Everything happens in one
// transaction.
func (db *DB) ToggleCandle(ctx context.Context, accountID, tributeID string) (*model.CandleState, error) {
	state := &model.CandleState{TributeID: tributeID}

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT candle_count FROM tributes WHERE id = ?`, tributeID,
		).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("tribute", tributeID)
		}
		if err != nil {
			return fmt.Errorf("sqlite: reading tribute %s: %w", tributeID, err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM candles WHERE account_id = ? AND tribute_id = ?`,
			accountID, tributeID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: removing candle: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}

		if removed > 0 {
			state.Lit = false
			_, err = tx.ExecContext(ctx,
				`UPDATE tributes SET candle_count = MAX(candle_count - 1, 0) WHERE id = ?`,
				tributeID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: decrementing candle count: %w", err)
			}
		} else {
			state.Lit = true
			res, err = tx.ExecContext(ctx,
				`INSERT INTO candles (account_id, tribute_id, created_at) VALUES (?, ?, ?)
				 ON CONFLICT (account_id, tribute_id) DO NOTHING`,
				accountID, tributeID, time.Now().UTC(),
			)
			if err != nil {
				return fmt.Errorf("sqlite: inserting candle: %w", err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			if inserted > 0 {
				_, err = tx.ExecContext(ctx,
					`UPDATE tributes SET candle_count = candle_count + 1 WHERE id = ?`,
					tributeID,
				)
				if err != nil {
					return fmt.Errorf("sqlite: incrementing candle count: %w", err)
				}
			}
		}

		return tx.QueryRowContext(ctx,
			`SELECT candle_count FROM tributes WHERE id = ?`, tributeID,
		).Scan(&state.CandleCount)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (db *DB) HasLitCandle(ctx context.Context, accountID, tributeID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM candles WHERE account_id = ? AND tribute_id = ?`,
		accountID, tributeID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking candle: %w", err)
	}
	return true, nil
}

// LitTributeIDs answers HasLitCandle for a whole page in one query.
func (db *DB) LitTributeIDs(ctx context.Context, accountID string, tributeIDs []string) (map[string]bool, error) {
	lit := make(map[string]bool, len(tributeIDs))
	if len(tributeIDs) == 0 {
		return lit, nil
	}

	args := make([]any, 0, len(tributeIDs)+1)
	args = append(args, accountID)
	for _, id := range tributeIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tributeIDs)), ",")

	rows, err := db.conn.QueryContext(ctx,
		`SELECT tribute_id FROM candles WHERE account_id = ? AND tribute_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lit tributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning lit tribute: %w", err)
		}
		lit[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating lit tributes: %w", err)
	}
	return lit, nil
}

// ListCandles returns the candles on a tribute, oldest first.
func (db *DB) ListCandles(ctx context.Context, tributeID string) ([]model.Candle, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT account_id, tribute_id, created_at FROM candles
		 WHERE tribute_id = ? ORDER BY created_at ASC`,
		tributeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing candles: %w", err)
	}
	defer rows.Close()

	candles := []model.Candle{}
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.AccountID, &c.TributeID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning candle row: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating candles: %w", err)
	}
	return candles, nil
}
