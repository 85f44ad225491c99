// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider identifies the third-party OAuth issuer a user signed in with.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderGitHub   Provider = "github"
	ProviderFacebook Provider = "facebook"
)

// Valid reports whether p is one of the supported OAuth providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderFacebook:
		return true
	}
	return false
}

// User is an internal account. One row exists per (provider, providerId)
// pair; the internal ID is a monotonically increasing integer assigned on
// first login and never reused.
//
// Email and Photo are empty strings rather than pointers when the provider
// withholds them. omitempty keeps them out of the JSON in that case.
type User struct {
	ID         int64     `json:"id"`
	Provider   Provider  `json:"provider"`
	ProviderID string    `json:"providerId"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Photo      string    `json:"photo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Profile is the normalized identity every OAuth provider produces after a
// successful code exchange. Providers return facts only; creating or
// looking up the User is the identity service's job.
type Profile struct {
	Provider   Provider
	ProviderID string
	Name       string
	Email      string
	Photo      string
}
