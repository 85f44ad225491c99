package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/sakif/imagesearch/internal/model"
)

const githubAPI = "https://api.github.com"

// githubUser is the subset of GET /user we read.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider signs users in with GitHub.
//
// Scopes:
//   - "read:user"  public profile (id, login, name, avatar)
//   - "user:email" email addresses, needed when the public email is hidden
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

func (p *GitHubProvider) Name() model.Provider { return model.ProviderGitHub }

func (p *GitHubProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades the code for a token, then reads /user. When the user
// hides their public email, the primary verified address from
// /user/emails is used instead. The display name falls back to the login.
func (p *GitHubProvider) Exchange(ctx context.Context, code, verifier string) (*model.Profile, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: github: exchanging code: %w", err)
	}
	client := p.config.Client(ctx, token)

	var u githubUser
	if err := getJSON(ctx, client, p.apiBase+"/user", &u); err != nil {
		return nil, fmt.Errorf("auth: github: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: github: returned an invalid user (id = 0)")
	}

	email := u.Email
	if email == "" {
		var emails []githubEmail
		// A failure here is not fatal; email is optional.
		if err := getJSON(ctx, client, p.apiBase+"/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}

	return &model.Profile{
		Provider:   model.ProviderGitHub,
		ProviderID: strconv.FormatInt(u.ID, 10),
		Name:       name,
		Email:      email,
		Photo:      u.AvatarURL,
	}, nil
}

// getJSON GETs url with the token-bearing client and decodes into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
