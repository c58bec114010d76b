package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/model"
	"github.com/sakif/memorial/internal/repository"
)

var (
	_ repository.SettingRepository = (*DB)(nil)
	_ repository.ProgramRepository = (*DB)(nil)
)

// UpsertSetting writes key=value in a single statement; the primary key on
// settings.key guarantees one row per key.
func (db *DB) UpsertSetting(ctx context.Context, key, value string) (*model.Setting, error) {
	s := &model.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.Key, s.Value, s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting setting %q: %w", key, err)
	}
	return s, nil
}

func (db *DB) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	err := db.conn.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = ?`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("setting", key)
		}
		return nil, fmt.Errorf("sqlite: getting setting %q: %w", key, err)
	}
	return &s, nil
}

func (db *DB) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing settings: %w", err)
	}
	defer rows.Close()

	settings := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning setting row: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating settings: %w", err)
	}
	return settings, nil
}

const programSelect = `SELECT date, time, location, address, stream_url, program_url, description, updated_at
	FROM funeral_program WHERE id = 1`

func scanProgram(row interface{ Scan(...any) error }, p *model.FuneralProgram) error {
	return row.Scan(&p.Date, &p.Time, &p.Location, &p.Address, &p.StreamURL, &p.ProgramURL, &p.Description, &p.UpdatedAt)
}

func (db *DB) GetProgram(ctx context.Context) (*model.FuneralProgram, error) {
	var p model.FuneralProgram
	if err := scanProgram(db.conn.QueryRowContext(ctx, programSelect), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("funeral program", "1")
		}
		return nil, fmt.Errorf("sqlite: getting funeral program: %w", err)
	}
	return &p, nil
}

// PatchProgram reads the singleton row (id = 1), applies patch and writes
// it back inside one transaction, inserting the row on first use.
func (db *DB) PatchProgram(ctx context.Context, patch model.ProgramPatch) (*model.FuneralProgram, error) {
	var p model.FuneralProgram

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		err := scanProgram(tx.QueryRowContext(ctx, programSelect), &p)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: reading funeral program: %w", err)
		}

		patch.Apply(&p)
		p.UpdatedAt = time.Now().UTC()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO funeral_program
			   (id, date, time, location, address, stream_url, program_url, description, updated_at)
			 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   date = excluded.date,
			   time = excluded.time,
			   location = excluded.location,
			   address = excluded.address,
			   stream_url = excluded.stream_url,
			   program_url = excluded.program_url,
			   description = excluded.description,
			   updated_at = excluded.updated_at`,
			p.Date, p.Time, p.Location, p.Address, p.StreamURL, p.ProgramURL, p.Description, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: saving funeral program: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
