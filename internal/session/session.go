// Package session holds server-side session records.
//
// A session stores only the internal user ID. The full user is reloaded
// from the database on every request, so profile changes and deletions
// take effect immediately. The browser never sees the session record; it
// holds a signed cookie that references it (see auth.TokenService).
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the session does not exist or has
// expired. Stores never distinguish the two.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL matches the lifetime of the session cookie.
const DefaultTTL = 24 * time.Hour

type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create starts a new session for userID that lives for the store's TTL.
	Create(ctx context.Context, userID int64) (*Session, error)
	// Get returns ErrNotFound for unknown or expired IDs.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete is idempotent: deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
