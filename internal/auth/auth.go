// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth gates the web application behind a single operator
// credential pair and issues signed session tokens.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const issuer = "sanctions-engine"

// hashCost is the bcrypt cost for the in-memory password hash.
var hashCost = bcrypt.DefaultCost

// Claims are the session token claims.
type Claims struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Authenticator checks credentials and issues and validates session tokens.
type Authenticator struct {
	username string
	hash     []byte
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

// New builds an Authenticator from cfg. The password is kept only as a
// bcrypt hash. An empty signing key is replaced by a random one, which
// invalidates sessions on restart.
func New(cfg types.AuthConfig) (*Authenticator, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.Wrap(types.ErrBadParameter, "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), hashCost)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, errors.Wrap(err, "generating signing key")
		}
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	return &Authenticator{
		username: cfg.Username,
		hash:     hash,
		key:      key,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// TTL is the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// Login checks the credentials and returns a signed session token.
func (a *Authenticator) Login(username, password string) (string, *Claims, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return "", nil, types.ErrInvalidCredentials
	}

	now := a.now()
	claims := &Claims{
		Username:  a.username,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   a.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", nil, errors.Wrap(err, "signing session token")
	}
	return token, claims, nil
}

// Validate parses a session token and returns its claims.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, types.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.key, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.ErrSessionExpired
		}
		return nil, errors.Wrap(types.ErrUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username != a.username {
		return nil, errors.Wrap(types.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
