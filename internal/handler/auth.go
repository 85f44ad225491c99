package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/imagesearch/internal/apperror"
	"github.com/sakif/imagesearch/internal/auth"
	"github.com/sakif/imagesearch/internal/service"
)

// AuthHandler runs the OAuth login flow for every registered provider.
//
//   - HandleLogin     → redirect to the provider's consent page
//   - HandleCallback  → verify state, exchange code, open session
//   - HandleLogout*   → destroy session, clear cookie
//   - HandleUser      → current user
//
// Browser-facing endpoints redirect to the client app; only /api/user and
// the POST logout speak JSON.
type AuthHandler struct {
	providers  *auth.Registry
	svc        *service.AuthService
	cookies    auth.Cookies
	clientRoot string
	logger     *slog.Logger
}

func NewAuthHandler(
	providers *auth.Registry,
	svc *service.AuthService,
	cookies auth.Cookies,
	clientRoot string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		providers:  providers,
		svc:        svc,
		cookies:    cookies,
		clientRoot: clientRoot,
		logger:     logger,
	}
}

// HandleLogin starts sign-in with the provider named in the path.
//
// HTTP: GET /auth/{provider}
//
// A random state (CSRF) and a PKCE verifier are stored in short-lived
// cookies scoped to /auth; the callback checks both.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	provider, err := h.providers.Get(name)
	if err != nil {
		writeError(w, apperror.NotFound("oauth provider", name))
		return
	}

	state := xid.New().String()
	verifier := oauth2.GenerateVerifier()
	h.cookies.SetOAuth(w, state, verifier)

	http.Redirect(w, r, provider.AuthCodeURL(state, verifier), http.StatusTemporaryRedirect)
}

// HandleCallback completes sign-in.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// Success redirects to <client>/dashboard with the session cookie set.
// Every failure (denied consent, bad state, exchange error) redirects to
// <client>/login; the reason is only logged.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	q := r.URL.Query()

	stateCookie, stateErr := r.Cookie(auth.StateCookie)
	verifierCookie, verifierErr := r.Cookie(auth.VerifierCookie)
	// Single use, whatever happens next.
	h.cookies.ClearOAuth(w)

	provider, err := h.providers.Get(name)
	if err != nil {
		h.loginFailed(w, r, name, "unknown provider")
		return
	}
	if errParam := q.Get("error"); errParam != "" {
		h.loginFailed(w, r, name, "provider returned error: "+errParam)
		return
	}
	if stateErr != nil || verifierErr != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.loginFailed(w, r, name, "state mismatch")
		return
	}
	code := q.Get("code")
	if code == "" {
		h.loginFailed(w, r, name, "missing code")
		return
	}

	profile, err := provider.Exchange(r.Context(), code, verifierCookie.Value)
	if err != nil {
		h.loginFailed(w, r, name, err.Error())
		return
	}

	res, err := h.svc.Login(r.Context(), profile)
	if err != nil {
		h.loginFailed(w, r, name, err.Error())
		return
	}

	h.cookies.SetSession(w, res.Token, h.svc.SessionTTL())
	http.Redirect(w, r, h.clientRoot+"/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, provider, reason string) {
	h.logger.Warn("oauth callback failed",
		slog.String("provider", provider),
		slog.String("reason", reason),
	)
	http.Redirect(w, r, h.clientRoot+"/login", http.StatusSeeOther)
}

// HandleLogoutRedirect signs out and sends the browser to the client root.
//
// HTTP: GET /auth/logout
func (h *AuthHandler) HandleLogoutRedirect(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	http.Redirect(w, r, h.clientRoot, http.StatusSeeOther)
}

// HandleLogout signs out an API client.
//
// HTTP: POST /auth/logout
// RESPONSE: {"ok": true}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.endSession(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// endSession destroys the server-side session if the request carried one
// and clears the cookie regardless. A store error is logged but does not
// keep the user signed in on this browser.
func (h *AuthHandler) endSession(w http.ResponseWriter, r *http.Request) {
	if sid, ok := auth.SessionIDFromContext(r.Context()); ok {
		if err := h.svc.Logout(r.Context(), sid); err != nil {
			h.logger.Error("logout: failed to delete session", slog.String("error", err.Error()))
		}
	}
	h.cookies.ClearSession(w)
}

// HandleUser returns the signed-in user.
//
// HTTP: GET /api/user
// RESPONSE: {"user": {...}}
//
// During a database outage the gate only knows the user's ID. Sending that
// as if it were the profile would blank the client's header, so answer 503.
func (h *AuthHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !auth.ProfileLoaded(r.Context()) {
		writeError(w, apperror.Unavailable(service.WarningStoreUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}
