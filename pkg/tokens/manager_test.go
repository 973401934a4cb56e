package tokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type memStore struct {
	tokens map[string][]string
	err    error
}

func newMemStore() *memStore {
	return &memStore{tokens: map[string][]string{}}
}

func (s *memStore) AppendSessionToken(_ context.Context, userID, token string) error {
	if s.err != nil {
		return s.err
	}
	s.tokens[userID] = append(s.tokens[userID], token)
	return nil
}

func (s *memStore) RemoveSessionToken(_ context.Context, userID, token string) error {
	kept := s.tokens[userID][:0]
	for _, t := range s.tokens[userID] {
		if t != token {
			kept = append(kept, t)
		}
	}
	s.tokens[userID] = kept
	return nil
}

func (s *memStore) ClearSessionTokens(_ context.Context, userID string) error {
	s.tokens[userID] = nil
	return nil
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := NewManager("super-secret", 0, store)

	tok, err := m.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	uid, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if uid != "user-123" {
		t.Fatalf("user id mismatch: got %q want %q", uid, "user-123")
	}
	if len(store.tokens["user-123"]) != 1 || store.tokens["user-123"][0] != tok {
		t.Fatalf("issued token not persisted in session set: %v", store.tokens)
	}
}

func TestIssue_TokensAreDistinct(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", 0, newMemStore())

	a, err := m.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	b, err := m.Issue(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if a == b {
		t.Fatalf("two issued tokens are identical")
	}
}

func TestIssue_StoreFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.err = errors.New("db down")
	m := NewManager("k", 0, store)

	if _, err := m.Issue(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error when session set cannot be persisted")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	m1 := NewManager("right-secret", 0, newMemStore())
	m2 := NewManager("wrong-secret", 0, newMemStore())

	tok, err := m1.Issue(context.Background(), "u2")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := m2.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := NewManager("k", time.Minute, newMemStore())

	// Sign a token whose expiry is already in the past.
	past := time.Now().Add(-time.Hour)
	c := &claims{
		UserID: "u3",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "token-u3",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestIssue_WithTTLSetsExpiry(t *testing.T) {
	t.Parallel()

	m := NewManager("k", time.Minute, newMemStore())

	tok, err := m.Issue(context.Background(), "u3")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	c := &claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, c); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if c.ExpiresAt == nil {
		t.Fatalf("token issued with a TTL carries no expiry claim")
	}
	if _, err := m.Verify(tok); err != nil {
		t.Fatalf("fresh token must verify, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := NewManager("k", 0, newMemStore())
	if _, err := m.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	m := NewManager("k", 0, store)
	ctx := context.Background()

	a, _ := m.Issue(ctx, "u4")
	b, _ := m.Issue(ctx, "u4")

	if err := m.Revoke(ctx, "u4", a); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if got := store.tokens["u4"]; len(got) != 1 || got[0] != b {
		t.Fatalf("expected only second token to remain, got %v", got)
	}

	// revoking an absent token is a no-op
	if err := m.Revoke(ctx, "u4", a); err != nil {
		t.Fatalf("Revoke of absent token: %v", err)
	}

	if err := m.RevokeAll(ctx, "u4"); err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}
	if len(store.tokens["u4"]) != 0 {
		t.Fatalf("expected empty session set after RevokeAll, got %v", store.tokens["u4"])
	}
}
