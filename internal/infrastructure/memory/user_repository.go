// Package memory provides an in-memory UserRepository with the same
// semantics as the postgres implementation. It backs the test suites and is
// safe for concurrent use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/account-api/internal/domain/entity"
	"github.com/taskhub/account-api/internal/domain/repository"
)

type UserRepository struct {
	mu      sync.Mutex
	users   map[string]*entity.User
	emails  map[string]string
	avatars map[string][]byte
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   map[string]*entity.User{},
		emails:  map[string]string{},
		avatars: map[string][]byte{},
	}
}

func clone(u *entity.User) *entity.User {
	c := *u
	c.SessionTokens = append([]string(nil), u.SessionTokens...)
	return &c
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.emails[u.Email]; taken {
		return repository.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = clone(u)
	r.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.emails[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.users[id]), nil
}

func (r *UserRepository) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if id, taken := r.emails[u.Email]; taken && id != u.ID {
		return repository.ErrDuplicateEmail
	}
	delete(r.emails, stored.Email)
	u.UpdatedAt = time.Now()
	updated := clone(u)
	updated.SessionTokens = append([]string(nil), stored.SessionTokens...)
	r.users[u.ID] = updated
	r.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.emails, u.Email)
	delete(r.users, id)
	delete(r.avatars, id)
	return nil
}

func (r *UserRepository) AppendSessionToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.SessionTokens = append(u.SessionTokens, token)
	return nil
}

func (r *UserRepository) RemoveSessionToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	kept := u.SessionTokens[:0]
	for _, t := range u.SessionTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	u.SessionTokens = kept
	return nil
}

func (r *UserRepository) ClearSessionTokens(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.SessionTokens = nil
	return nil
}

func (r *UserRepository) SetAvatar(_ context.Context, userID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repository.ErrNotFound
	}
	r.avatars[userID] = append([]byte(nil), data...)
	return nil
}

func (r *UserRepository) ClearAvatar(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.avatars, userID)
	return nil
}

func (r *UserRepository) GetAvatar(_ context.Context, userID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.avatars[userID]
	if !ok || len(data) == 0 {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
