package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned by Verify for malformed tokens, bad
// signatures, and expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// SessionStore persists the per-user session set. Implementations must
// apply each mutation atomically on the stored record.
type SessionStore interface {
	AppendSessionToken(ctx context.Context, userID, token string) error
	RemoveSessionToken(ctx context.Context, userID, token string) error
	ClearSessionTokens(ctx context.Context, userID string) error
}

// Manager issues, verifies, and revokes bearer session tokens.
//
// Tokens are HS256 JWTs carrying the user id and a unique token id, so two
// logins by the same user always produce distinct strings and revocation by
// exact string equality is well defined. With ttl == 0 tokens carry no
// expiry and stay valid until revoked server-side.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  SessionStore
}

func NewManager(secret string, ttl time.Duration, store SessionStore) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, store: store}
}

type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Issue signs a new token for the user and appends it to the persisted
// session set before returning it.
func (m *Manager) Issue(ctx context.Context, userID string) (string, error) {
	now := time.Now()
	c := &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	if err := m.store.AppendSessionToken(ctx, userID, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// Verify checks the signature (and expiry, when present) and returns the
// embedded user id. A valid signature alone does not prove the session is
// still live; callers must also check membership in the user's session set.
func (m *Manager) Verify(tokenStr string) (string, error) {
	c := &claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !tok.Valid || c.UserID == "" {
		return "", ErrInvalidToken
	}
	return c.UserID, nil
}

// Revoke removes exactly the presented token from the user's session set;
// it is a no-op when the token is already absent.
func (m *Manager) Revoke(ctx context.Context, userID, token string) error {
	return m.store.RemoveSessionToken(ctx, userID, token)
}

// RevokeAll clears the user's entire session set.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	return m.store.ClearSessionTokens(ctx, userID)
}
