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

var _ repository.GalleryRepository = (*DB)(nil)

const (
	imageColumns = `id, url, caption, featured, display_order, created_at, updated_at`
	imageOrder   = `ORDER BY display_order ASC, created_at ASC, id ASC`
)

func scanImage(row interface{ Scan(...any) error }, img *model.GalleryImage) error {
	return row.Scan(
		&img.ID,
		&img.URL,
		&img.Caption,
		&img.Featured,
		&img.DisplayOrder,
		&img.CreatedAt,
		&img.UpdatedAt,
	)
}

func (db *DB) CreateImage(ctx context.Context, img *model.GalleryImage) error {
	now := time.Now().UTC()
	img.ID = xid.New().String()
	img.CreatedAt = now
	img.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO gallery_images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.URL, img.Caption, img.Featured, img.DisplayOrder, img.CreatedAt, img.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating gallery image: %w", err)
	}
	return nil
}

func (db *DB) GetImage(ctx context.Context, id string) (*model.GalleryImage, error) {
	var img model.GalleryImage
	err := scanImage(db.conn.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM gallery_images WHERE id = ?`, id), &img)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("gallery image", id)
		}
		return nil, fmt.Errorf("sqlite: getting gallery image %s: %w", id, err)
	}
	return &img, nil
}

func (db *DB) UpdateImage(ctx context.Context, img *model.GalleryImage) error {
	img.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE gallery_images
		 SET url = ?, caption = ?, featured = ?, display_order = ?, updated_at = ?
		 WHERE id = ?`,
		img.URL, img.Caption, img.Featured, img.DisplayOrder, img.UpdatedAt, img.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating gallery image %s: %w", img.ID, err)
	}
	return checkAffected(res, apperror.NotFound("gallery image", img.ID))
}

func (db *DB) DeleteImage(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM gallery_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting gallery image %s: %w", id, err)
	}
	return checkAffected(res, apperror.NotFound("gallery image", id))
}

// ListImages pages through the gallery in display order.
func (db *DB) ListImages(ctx context.Context, opts repository.ListOptions) ([]model.GalleryImage, error) {
	opts = opts.Normalize()
	return db.queryImages(ctx,
		`SELECT `+imageColumns+` FROM gallery_images `+imageOrder+` LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
}

func (db *DB) ListFeaturedImages(ctx context.Context) ([]model.GalleryImage, error) {
	return db.queryImages(ctx,
		`SELECT `+imageColumns+` FROM gallery_images WHERE featured = 1 `+imageOrder,
	)
}

func (db *DB) queryImages(ctx context.Context, query string, args ...any) ([]model.GalleryImage, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing gallery images: %w", err)
	}
	defer rows.Close()

	images := []model.GalleryImage{}
	for rows.Next() {
		var img model.GalleryImage
		if err := scanImage(rows, &img); err != nil {
			return nil, fmt.Errorf("sqlite: scanning gallery image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating gallery images: %w", err)
	}
	return images, nil
}
