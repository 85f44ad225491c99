package model

import "time"

// Search result sources reported to the client.
const (
	SourceUnsplash    = "unsplash"
	SourcePlaceholder = "placeholder"
)

// SearchResult is the provider-independent shape of one image hit.
// Live and placeholder results are indistinguishable at this level.
type SearchResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Author      string `json:"author,omitempty"`
	AuthorURL   string `json:"authorUrl,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
}

// SearchResponse is what a search returns to the caller.
// Total is the provider's total hit count on the live path and the number
// of placeholder results otherwise.
type SearchResponse struct {
	Term    string         `json:"term"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Source  string         `json:"source"`
	Warning string         `json:"warning,omitempty"`
}

// SavedImage is an image a user bookmarked. (UserID, ImageID) is unique.
type SavedImage struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	ImageID     string    `json:"imageId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Author      string    `json:"author,omitempty"`
	AuthorURL   string    `json:"authorUrl,omitempty"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	SavedAt     time.Time `json:"savedAt"`
}

// FromResult builds an unsaved SavedImage from a search result.
// Batch saves receive search results, whose id is the image id.
func FromResult(r SearchResult) SavedImage {
	return SavedImage{
		ImageID:     r.ID,
		Title:       r.Title,
		URL:         r.URL,
		Thumbnail:   r.Thumbnail,
		Author:      r.Author,
		AuthorURL:   r.AuthorURL,
		DownloadURL: r.DownloadURL,
	}
}

// BatchResult summarises a batch save. Items that failed to persist are
// counted in neither Saved nor AlreadySaved, only in Total.
type BatchResult struct {
	Saved        int `json:"saved"`
	AlreadySaved int `json:"alreadySaved"`
	Total        int `json:"total"`
}

// SavedImagePage is one page of a user's saved images, newest first.
type SavedImagePage struct {
	Images  []SavedImage `json:"images"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Skip    int          `json:"skip"`
	Warning string       `json:"warning,omitempty"`
}
