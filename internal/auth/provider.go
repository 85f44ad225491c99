// Package auth implements OAuth sign-in, the signed session cookie, and the
// middleware that gates API routes on an active session.
//
// OAUTH FLOW:
//  1. GET /auth/{provider} stores a random state and a PKCE verifier in
//     short-lived cookies and redirects to the provider.
//  2. The provider redirects back to /auth/{provider}/callback with a code.
//  3. The server checks the state, exchanges the code (sending the
//     verifier), and receives a normalized model.Profile.
//  4. The identity service maps the profile to an internal user, a
//     session is created, and its signed reference is set as a cookie.
//
// Providers only report who the user is. They never create users or
// sessions.
package auth

import (
	"context"
	"fmt"
	"sort"

	"github.com/sakif/imagesearch/internal/model"
)

// Provider is the capability every OAuth identity issuer implements.
type Provider interface {
	Name() model.Provider
	// AuthCodeURL returns the provider's consent URL for the given state.
	// verifier is the PKCE code verifier; its S256 challenge is sent.
	AuthCodeURL(state, verifier string) string
	// Exchange trades the authorization code for a normalized profile.
	Exchange(ctx context.Context, code, verifier string) (*model.Profile, error)
}

// Registry looks providers up by name. Only providers with configured
// credentials are registered, so an unknown name and an unconfigured one
// look the same to callers.
type Registry struct {
	providers map[model.Provider]Provider
}

func NewRegistry(list ...Provider) *Registry {
	m := make(map[model.Provider]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[model.Provider(name)]
	if !ok {
		return nil, fmt.Errorf("auth: unknown oauth provider %q", name)
	}
	return p, nil
}

// Names lists registered providers in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}
