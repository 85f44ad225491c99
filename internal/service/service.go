// Package service contains the business rules of the image search API.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces ownership, degrades on outages
//	Repository      → reads/writes the store
//
// Services take repository interfaces, never *sqlite.DB, and return
// apperror values; the handler layer alone picks status codes.
package service

import (
	"context"
	"log/slog"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/repository"
)

const (
	DefaultHistoryLimit    = 20
	DefaultSavedImageLimit = 50
	DefaultTopSearchLimit  = 5
	MaxListLimit           = 100
)

// WarningStoreUnavailable is attached to read responses served empty
// because the store could not be reached.
const WarningStoreUnavailable = "Database not available"

// clampPage applies the default when limit is unset, caps it at
// MaxListLimit, and floors skip at zero.
func clampPage(limit, skip, def int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

// storeUp pings the store. A failure is logged once here so callers only
// have to decide between degrading and returning ErrUnavailable.
func storeUp(ctx context.Context, p repository.Pinger, logger *slog.Logger, op string) bool {
	if err := p.Ping(ctx); err != nil {
		logger.Warn("store unavailable",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// queryFailed logs a read that failed after the ping succeeded. Reads
// treat it like a failed ping and degrade.
func queryFailed(logger *slog.Logger, op string, err error) {
	logger.Error("store query failed, degrading",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

func errStoreUnavailable() error {
	return apperror.Unavailable(WarningStoreUnavailable)
}
