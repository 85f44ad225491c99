package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// newID returns a 256-bit random, URL-safe session identifier.
func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
