// Package repository declares the storage contracts the service layer
// depends on. Implementations live in subpackages (see sqlite/).
//
// Services accept these interfaces, never a concrete *sqlite.DB, so tests
// can substitute in-memory fakes and the storage engine can change without
// touching business logic.
package repository

import (
	"context"

	"github.com/sakif/imagesearch/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Pinger reports whether the backing store is reachable right now.
// Services call it before store operations so an outage surfaces as
// apperror.ErrUnavailable instead of a generic internal error.
type Pinger interface {
	Ping(ctx context.Context) error
}

type UserRepository interface {
	// ResolveOrCreate returns the user for (provider, providerID), creating
	// it from the profile when absent. Existing rows are returned unchanged.
	ResolveOrCreate(ctx context.Context, profile *model.Profile) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

type SavedImageRepository interface {
	Pinger
	FindByImageID(ctx context.Context, userID int64, imageID string) (*model.SavedImage, error)
	// CreateSavedImage inserts img unless (userID, imageID) already exists.
	// created is false when the row was already there; img is then filled
	// from the existing record.
	CreateSavedImage(ctx context.Context, img *model.SavedImage) (created bool, err error)
	ListSavedImages(ctx context.Context, userID int64, opts ListOptions) ([]model.SavedImage, error)
	CountSavedImages(ctx context.Context, userID int64) (int, error)
	// DeleteSavedImage removes the row only if it belongs to userID.
	DeleteSavedImage(ctx context.Context, userID int64, id string) error
}

type HistoryRepository interface {
	Pinger
	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	ListHistory(ctx context.Context, userID int64, opts ListOptions) ([]model.HistoryEntry, error)
	CountHistory(ctx context.Context, userID int64) (int, error)
	TopTermsForUser(ctx context.Context, userID int64, limit int) ([]model.TermCount, error)
	RecentForUser(ctx context.Context, userID int64, limit int) ([]model.RecentSearch, error)
	TopTermsGlobal(ctx context.Context, limit int) ([]model.GlobalTermStat, error)
}
