package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/session"
)

// contextKey is unexported so no other package can read or overwrite the
// values stored under it.
type contextKey string

const (
	userKey      contextKey = "user"
	sessionIDKey contextKey = "sessionID"
	partialKey   contextKey = "partialUser"
)

// errNoSession covers every reason the request is simply not signed in:
// no cookie, a bad or expired token, an unknown session, or a user that
// no longer exists. Anything else means a backend is down.
var errNoSession = errors.New("auth: no active session")

// UserLoader rehydrates the user a session points at.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Gate resolves the session cookie into a user.
type Gate struct {
	tokens   *TokenService
	sessions session.Store
	users    UserLoader
	logger   *slog.Logger
}

func NewGate(tokens *TokenService, sessions session.Store, users UserLoader, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, sessions: sessions, users: users, logger: logger}
}

const (
	unauthorizedBody = `{"error":"unauthorized","message":"Authentication required"}` + "\n"
	unavailableBody  = `{"error":"service_unavailable","message":"Session store not available"}` + "\n"
)

// RequireSession rejects requests without an active session with 401 and
// stops the chain. Otherwise the user and session ID are attached to the
// request context for handlers to read.
//
// Being signed in and the stores being up are separate questions:
//   - session store down → 503, since nobody can be identified
//   - user store down    → the request goes through with a partial user
//     (ID only) and the services degrade or answer 503 themselves
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := g.resolve(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			if errors.Is(err, errNoSession) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(unauthorizedBody))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(unavailableBody))
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalSession attaches the user when a valid session is present but
// never blocks. Logout uses it so a stale cookie can still be cleared.
func (g *Gate) OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, err := g.resolve(r); err == nil {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// resolve: cookie -> verified claims -> live session -> user.
// Every step must succeed and agree on the user ID. It returns the request
// context with the user attached.
func (g *Gate) resolve(r *http.Request) (context.Context, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, errNoSession
	}

	claims, err := g.tokens.Validate(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoSession, err)
	}

	sess, err := g.sessions.Get(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errNoSession
		}
		g.logger.Error("session lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	if sess.UserID != claims.UserID {
		return nil, fmt.Errorf("%w: session does not belong to token subject", errNoSession)
	}

	user, err := g.users.GetUserByID(r.Context(), sess.UserID)
	switch {
	case err == nil:
		return withUser(r.Context(), user, sess.ID), nil
	case errors.Is(err, apperror.ErrNotFound):
		return nil, errNoSession
	}

	// The session proves who this is; only the profile is missing.
	g.logger.Warn("user store unavailable, continuing with session user id",
		slog.Int64("user_id", sess.UserID),
		slog.String("error", err.Error()),
	)
	ctx := withUser(r.Context(), &model.User{ID: sess.UserID}, sess.ID)
	return context.WithValue(ctx, partialKey, true), nil
}

func withUser(ctx context.Context, user *model.User, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// UserFromContext returns the authenticated user, or (nil, false) on an
// anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// ProfileLoaded reports whether the context user is the full stored record.
// It is false when the user store was down and only the ID is known.
func ProfileLoaded(ctx context.Context) bool {
	partial, _ := ctx.Value(partialKey).(bool)
	return !partial
}

// SessionIDFromContext returns the current session ID, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithUser attaches user to ctx as RequireSession would. Handler tests
// use it to exercise protected handlers without a full cookie round trip.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}
