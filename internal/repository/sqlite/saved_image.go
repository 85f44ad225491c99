package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

var _ repository.SavedImageRepository = (*DB)(nil)

const defaultSavedImagesPage = 50

const savedImageColumns = `id, user_id, image_id, title, url, thumbnail, author, author_url, download_url, saved_at`

// FindByImageID returns the user's saved copy of imageID.
// Returns apperror.ErrNotFound when the user has not saved it.
func (db *DB) FindByImageID(ctx context.Context, userID int64, imageID string) (*model.SavedImage, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+savedImageColumns+` FROM saved_images WHERE user_id = ? AND image_id = ?`,
		userID, imageID,
	)
	img, err := scanSavedImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("saved image", imageID)
		}
		return nil, fmt.Errorf("sqlite: finding saved image %s: %w", imageID, err)
	}
	return img, nil
}

// CreateSavedImage inserts img, relying on UNIQUE(user_id, image_id) for
// idempotency. When the pair already exists nothing is written, created is
// false, and img is overwritten with the stored record.
//
// IDs are UUIDs because they appear in DELETE URLs and must not be
// guessable from insertion order.
func (db *DB) CreateSavedImage(ctx context.Context, img *model.SavedImage) (bool, error) {
	id := uuid.NewString()
	savedAt := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO saved_images (`+savedImageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, image_id) DO NOTHING`,
		id,
		img.UserID,
		img.ImageID,
		img.Title,
		img.URL,
		img.Thumbnail,
		img.Author,
		img.AuthorURL,
		img.DownloadURL,
		toUnix(savedAt),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: saving image %s: %w", img.ImageID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	if n == 0 {
		existing, err := db.FindByImageID(ctx, img.UserID, img.ImageID)
		if err != nil {
			return false, err
		}
		*img = *existing
		return false, nil
	}

	img.ID = id
	img.SavedAt = savedAt
	return true, nil
}

// ListSavedImages returns the user's images, most recently saved first.
// rowid breaks ties between rows saved in the same nanosecond.
func (db *DB) ListSavedImages(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.SavedImage, error) {
	limit, offset := clampList(opts, defaultSavedImagesPage)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+savedImageColumns+`
		 FROM saved_images
		 WHERE user_id = ?
		 ORDER BY saved_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved images: %w", err)
	}
	defer rows.Close()

	images := make([]model.SavedImage, 0, limit)
	for rows.Next() {
		img, err := scanSavedImage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning saved image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saved images: %w", err)
	}

	return images, nil
}

func (db *DB) CountSavedImages(ctx context.Context, userID int64) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM saved_images WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting saved images: %w", err)
	}
	return n, nil
}

// DeleteSavedImage deletes by (id, user_id). A row owned by someone else
// is indistinguishable from a missing one: both report NotFound.
func (db *DB) DeleteSavedImage(ctx context.Context, userID int64, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM saved_images WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting saved image %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("saved image", id)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSavedImage(s rowScanner) (*model.SavedImage, error) {
	var (
		img     model.SavedImage
		savedAt int64
	)
	err := s.Scan(
		&img.ID,
		&img.UserID,
		&img.ImageID,
		&img.Title,
		&img.URL,
		&img.Thumbnail,
		&img.Author,
		&img.AuthorURL,
		&img.DownloadURL,
		&savedAt,
	)
	if err != nil {
		return nil, err
	}
	img.SavedAt = fromUnix(savedAt)
	return &img, nil
}
