package repository

import (
	"context"
	"errors"

	"github.com/taskhub/account-api/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no user matches the given id or email.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when a create or update would violate
	// the unique email index.
	ErrDuplicateEmail = errors.New("email already in use")
)

// UserRepository defines the persistence operations for user records.
//
// Session-set mutations (append/remove/clear) must be applied atomically on
// the stored record so that two concurrent logouts revoking different
// tokens cannot clobber each other.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error

	AppendSessionToken(ctx context.Context, userID, token string) error
	RemoveSessionToken(ctx context.Context, userID, token string) error
	ClearSessionTokens(ctx context.Context, userID string) error

	SetAvatar(ctx context.Context, userID string, data []byte) error
	ClearAvatar(ctx context.Context, userID string) error
	GetAvatar(ctx context.Context, userID string) ([]byte, error)
}
