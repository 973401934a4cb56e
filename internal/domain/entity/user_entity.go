package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Password holds a bcrypt hash and must never appear in serialized output;
// handlers build response maps explicitly instead of marshaling the struct.
//
// SessionTokens is the set of currently valid bearer tokens, one per active
// login. The avatar blob lives on the record itself and is destroyed
// together with it; it is loaded separately from the profile fields.
type User struct {
	ID            string
	Email         string
	Password      string
	Name          string
	Age           int
	SessionTokens []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasSessionToken reports whether the exact token string is still part of
// the user's session set.
func (u *User) HasSessionToken(token string) bool {
	for _, t := range u.SessionTokens {
		if t == token {
			return true
		}
	}
	return false
}
