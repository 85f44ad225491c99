package auth

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/sakif/imagesearch/internal/model"
)

const facebookGraph = "https://graph.facebook.com"

type facebookUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// FacebookProvider signs users in with Facebook Login.
type FacebookProvider struct {
	config   *oauth2.Config
	graphURL string
}

func NewFacebookProvider(appID, appSecret, callbackURL string) *FacebookProvider {
	return &FacebookProvider{
		config: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		graphURL: facebookGraph,
	}
}

func (p *FacebookProvider) Name() model.Provider { return model.ProviderFacebook }

func (p *FacebookProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *FacebookProvider) Exchange(ctx context.Context, code, verifier string) (*model.Profile, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: facebook: exchanging code: %w", err)
	}

	q := url.Values{"fields": {"id,name,email,picture"}}
	var u facebookUser
	if err := getJSON(ctx, p.config.Client(ctx, token), p.graphURL+"/me?"+q.Encode(), &u); err != nil {
		return nil, fmt.Errorf("auth: facebook: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("auth: facebook: returned a user without id")
	}

	return &model.Profile{
		Provider:   model.ProviderFacebook,
		ProviderID: u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Photo:      u.Picture.Data.URL,
	}, nil
}
