package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// ResolveOrCreate maps an OAuth profile to an internal user.
//
// INSERT ... ON CONFLICT DO NOTHING followed by a SELECT keeps the
// operation race-free: two concurrent first logins for the same account
// both end up reading the single row the UNIQUE(provider, provider_id)
// constraint allowed. Profile fields of an existing user are left alone.
func (db *DB) ResolveOrCreate(ctx context.Context, profile *model.Profile) (*model.User, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (provider, provider_id, name, email, photo, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_id) DO NOTHING`,
		string(profile.Provider),
		profile.ProviderID,
		profile.Name,
		profile.Email,
		profile.Photo,
		toUnix(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user (%s/%s): %w", profile.Provider, profile.ProviderID, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, name, email, photo, created_at
		 FROM users WHERE provider = ? AND provider_id = ?`,
		string(profile.Provider), profile.ProviderID,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: resolving user (%s/%s): %w", profile.Provider, profile.ProviderID, err)
	}
	return u, nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no such user exists.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, name, email, photo, created_at
		 FROM users WHERE id = ?`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		provider string
		created  int64
	)
	if err := row.Scan(&u.ID, &provider, &u.ProviderID, &u.Name, &u.Email, &u.Photo, &created); err != nil {
		return nil, err
	}
	u.Provider = model.Provider(provider)
	u.CreatedAt = fromUnix(created)
	return &u, nil
}
