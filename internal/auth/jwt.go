package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const tokenIssuer = "imagesearch"

// TokenService signs and verifies the session cookie.
//
// The cookie value is an HS256 JWT whose "jti" is the server-side session
// ID and whose "sub" is the user ID. The signature stops clients from
// forging or swapping session IDs. It does not make the cookie
// self-sufficient: the session must still exist in the store, so logout
// takes effect immediately even though the token has not expired.
//
// The HMAC key is derived from SESSION_SECRET with HKDF rather than used
// raw, so the same secret can later key other purposes without reuse.
type TokenService struct {
	key []byte
}

// SessionClaims is what a valid session cookie carries.
type SessionClaims struct {
	SessionID string
	UserID    int64
	ExpiresAt time.Time
}

// NewTokenService derives the signing key from secret. The secret must be
// at least 16 characters.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("imagesearch session cookie v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("auth: deriving signing key: %w", err)
	}
	return &TokenService{key: key}, nil
}

// Generate signs a token referencing sessionID for userID, valid for ttl.
// A negative ttl produces an already-expired token (used in tests).
func (s *TokenService) Generate(sessionID string, userID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		ID:        sessionID,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    tokenIssuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, algorithm and expiry, and returns
// the claims. WithValidMethods blocks algorithm-confusion tokens ("none").
func (s *TokenService) Validate(tokenStr string) (*SessionClaims, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}

	if c.ID == "" {
		return nil, errors.New("auth: token has no session id")
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.New("auth: token has an invalid subject")
	}

	return &SessionClaims{
		SessionID: c.ID,
		UserID:    userID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
