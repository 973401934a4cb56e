package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskhub/account-api/internal/domain/entity"
	"github.com/taskhub/account-api/internal/domain/repository"
)

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, name, age)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, u.Email, u.Password, u.Name, u.Age)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*entity.User, error) {
	u := &entity.User{}

	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, age, session_tokens, created_at, updated_at
		FROM users
		WHERE `+column+` = $1
	`, value)

	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Age,
		&u.SessionTokens, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, password_hash = $2, name = $3, age = $4, updated_at = $5
		WHERE id = $6
	`, u.Email, u.Password, u.Name, u.Age, u.UpdatedAt, u.ID)
	if err != nil {
		return mapError(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Session-set mutations run as single-statement array updates so concurrent
// revocations of different tokens never overwrite each other.

func (r *UserRepository) AppendSessionToken(ctx context.Context, userID, token string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_tokens = array_append(session_tokens, $1), updated_at = now()
		WHERE id = $2
	`, token, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) RemoveSessionToken(ctx context.Context, userID, token string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_tokens = array_remove(session_tokens, $1), updated_at = now()
		WHERE id = $2
	`, token, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearSessionTokens(ctx context.Context, userID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET session_tokens = '{}', updated_at = now()
		WHERE id = $1
	`, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetAvatar(ctx context.Context, userID string, data []byte) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET avatar = $1, updated_at = now()
		WHERE id = $2
	`, data, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearAvatar(ctx context.Context, userID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET avatar = NULL, updated_at = now()
		WHERE id = $1
	`, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	var data []byte
	row := r.pool.QueryRow(ctx, `SELECT avatar FROM users WHERE id = $1`, userID)
	if err := row.Scan(&data); err != nil {
		return nil, mapError(err)
	}
	if len(data) == 0 {
		return nil, repository.ErrNotFound
	}
	return data, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicateEmail
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
