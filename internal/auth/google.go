package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sakif/imagesearch/internal/model"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider signs users in with Google through OpenID Connect.
// The profile is read from the verified ID token, so no extra userinfo
// call is needed.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider fetches Google's discovery document, which requires
// network access at startup.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, callbackURL string) (*GoogleProvider, error) {
	return newOIDCProvider(ctx, googleIssuer, clientID, clientSecret, callbackURL)
}

// newOIDCProvider discovers issuerURL. Tests point it at a local issuer.
func newOIDCProvider(ctx context.Context, issuerURL, clientID, clientSecret, callbackURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || callbackURL == "" {
		return nil, errors.New("auth: google: client id, secret and callback url are required")
	}

	issuer, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: google: discovering oidc provider: %w", err)
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     issuer.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: issuer.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *GoogleProvider) Name() model.Provider { return model.ProviderGoogle }

func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (*model.Profile, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: google: exchanging code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("auth: google: no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: google: verifying id_token: %w", err)
	}

	var claims struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: google: parsing claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("auth: google: id_token has no subject")
	}

	return &model.Profile{
		Provider:   model.ProviderGoogle,
		ProviderID: claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		Photo:      claims.Picture,
	}, nil
}
