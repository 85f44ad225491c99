// Package unsplash is a minimal client for the Unsplash photo search API.
package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sakif/imagesearch/internal/model"
)

const DefaultBaseURL = "https://api.unsplash.com"

var (
	// ErrUnauthorized means Unsplash rejected the access key.
	ErrUnauthorized = errors.New("unsplash: invalid access key")
	// ErrRateLimited means the key has exhausted its hourly quota.
	ErrRateLimited = errors.New("unsplash: rate limit exceeded")
)

// Client calls the search endpoint. It is safe for concurrent use.
type Client struct {
	baseURL   string
	accessKey string
	http      *http.Client
}

// New returns a client. An empty baseURL means DefaultBaseURL.
func New(baseURL, accessKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		accessKey: accessKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Total   int     `json:"total"`
	Results []photo `json:"results"`
}

type photo struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Regular string `json:"regular"`
		Small   string `json:"small"`
	} `json:"urls"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
	Links struct {
		Download string `json:"download"`
	} `json:"links"`
}

// Search runs a landscape photo search for term and returns up to perPage
// normalized results plus the total number of matches Unsplash reports.
//
// A 401 returns ErrUnauthorized and a 403 returns ErrRateLimited. Every
// other failure (transport, timeout, 5xx, bad JSON) is returned wrapped and
// is safe to treat as transient.
func (c *Client) Search(ctx context.Context, term string, perPage int) ([]model.SearchResult, int, error) {
	q := url.Values{
		"query":       {term},
		"per_page":    {strconv.Itoa(perPage)},
		"orientation": {"landscape"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("unsplash: building request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("unsplash: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, 0, ErrUnauthorized
	case http.StatusForbidden:
		return nil, 0, ErrRateLimited
	default:
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, 0, fmt.Errorf("unsplash: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("unsplash: decoding response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(body.Results))
	for _, p := range body.Results {
		results = append(results, p.toResult(term))
	}
	return results, body.Total, nil
}

func (p photo) toResult(term string) model.SearchResult {
	title := p.Description
	if title == "" {
		title = p.AltDescription
	}
	if title == "" {
		title = term
	}
	return model.SearchResult{
		ID:          p.ID,
		Title:       title,
		URL:         p.URLs.Regular,
		Thumbnail:   p.URLs.Small,
		Author:      p.User.Name,
		AuthorURL:   p.User.Links.HTML,
		DownloadURL: p.Links.Download,
	}
}
