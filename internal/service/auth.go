package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/auth"
	"github.com/sakif/imagesearch/internal/model"
	"github.com/sakif/imagesearch/internal/repository"
	"github.com/sakif/imagesearch/internal/session"
)

// AuthService turns a provider profile into a signed-in browser session.
//
//	AuthHandler → AuthService → UserRepository (identity)
//	                          ↘ session.Store + TokenService (cookie)
type AuthService struct {
	users    repository.UserRepository
	sessions session.Store
	tokens   *auth.TokenService
	ttl      time.Duration
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	sessions session.Store,
	tokens *auth.TokenService,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		ttl:      ttl,
		logger:   logger,
	}
}

// LoginResult bundles what the callback handler needs to finish sign-in.
type LoginResult struct {
	User    *model.User
	Session *session.Session
	Token   string
}

// ResolveOrCreate maps a provider profile to an internal user. The same
// (provider, providerId) pair always yields the same user.
func (s *AuthService) ResolveOrCreate(ctx context.Context, profile *model.Profile) (*model.User, error) {
	if profile == nil {
		return nil, apperror.ValidationFailed("profile", "profile is required")
	}
	if !profile.Provider.Valid() {
		return nil, apperror.ValidationFailed("provider", fmt.Sprintf("unsupported provider %q", profile.Provider))
	}

	p := *profile
	p.ProviderID = strings.TrimSpace(p.ProviderID)
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.ProviderID == "" {
		return nil, apperror.ValidationFailed("providerId", "provider did not return a user id")
	}
	if p.Name == "" {
		p.Name = string(p.Provider) + " user"
	}

	user, err := s.users.ResolveOrCreate(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return user, nil
}

// Login resolves the user, opens a session, and signs the cookie token.
func (s *AuthService) Login(ctx context.Context, profile *model.Profile) (*LoginResult, error) {
	user, err := s.ResolveOrCreate(ctx, profile)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	token, err := s.tokens.Generate(sess.ID, user.ID, s.ttl)
	if err != nil {
		// Don't leave an unreachable session behind.
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, fmt.Errorf("signing session token: %w", err)
	}

	s.logger.Info("user signed in",
		slog.Int64("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)
	return &LoginResult{User: user, Session: sess, Token: token}, nil
}

// Logout destroys the session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "user id is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// SessionTTL is how long issued sessions and cookies live.
func (s *AuthService) SessionTTL() time.Duration { return s.ttl }
