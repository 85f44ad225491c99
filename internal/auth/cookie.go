package auth

import (
	"net/http"
	"time"
)

// Cookie names.
const (
	SessionCookie  = "sid"
	StateCookie    = "oauth_state"
	VerifierCookie = "oauth_verifier"
)

// oauthCookieTTL bounds how long a user may sit on the consent screen.
const oauthCookieTTL = 10 * time.Minute

// Cookies issues and clears the cookies used by the login flow.
// Secure should be true whenever the site is served over HTTPS.
type Cookies struct {
	Secure bool
}

// SetSession stores the signed session token. HttpOnly keeps it away from
// scripts; SameSite=Lax still sends it on the top-level redirect back from
// the OAuth provider.
func (c Cookies) SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, SessionCookie)
}

// SetOAuth stores the state and PKCE verifier for one login attempt.
func (c Cookies) SetOAuth(w http.ResponseWriter, state, verifier string) {
	for name, value := range map[string]string{StateCookie: state, VerifierCookie: verifier} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/auth",
			MaxAge:   int(oauthCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ClearOAuth removes the single-use state and verifier cookies.
func (c Cookies) ClearOAuth(w http.ResponseWriter) {
	for _, name := range []string{StateCookie, VerifierCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/auth",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
