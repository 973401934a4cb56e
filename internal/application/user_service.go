package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/taskhub/account-api/internal/domain/entity"
	"github.com/taskhub/account-api/internal/domain/repository"
	"github.com/taskhub/account-api/pkg/avatar"
	"github.com/taskhub/account-api/pkg/helpers"
	"github.com/taskhub/account-api/pkg/mailer"
	"github.com/taskhub/account-api/pkg/tokens"
	"github.com/taskhub/account-api/pkg/validation"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// login failures cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	// ErrValidation wraps user-correctable input problems.
	ErrValidation = errors.New("validation failed")
)

var validate = validator.New()

// Service orchestrates the account lifecycle: registration, login/logout,
// profile mutation, deletion, and avatar handling. Pub, ES, and Logger are
// optional; when unset the corresponding side effects are skipped.
type Service struct {
	Repo         repository.UserRepository
	Tokens       *tokens.Manager
	Pub          *helpers.RabbitPublisher
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
}

func NewService(repo repository.UserRepository, tm *tokens.Manager, pub *helpers.RabbitPublisher, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string) *Service {
	return &Service{
		Repo:         repo,
		Tokens:       tm,
		Pub:          pub,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
	}
}

// NormalizeEmail lowercases and trims an email address; storage and lookup
// always operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Age      int
}

// Register creates the user, issues the first session token, and publishes
// a best-effort welcome notification.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, string, error) {
	email := NormalizeEmail(in.Email)
	if in.Name == "" {
		return nil, "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, "", fmt.Errorf("%w: email is malformed", ErrValidation)
	}
	if in.Age < 0 {
		return nil, "", fmt.Errorf("%w: age must not be negative", ErrValidation)
	}
	if !validation.PasswordOK(in.Password) {
		return nil, "", fmt.Errorf("%w: password is too weak", ErrValidation)
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	u := &entity.User{Email: email, Password: hash, Name: in.Name, Age: in.Age}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", fmt.Errorf("%w: email already in use", ErrValidation)
		}
		return nil, "", err
	}

	tok, err := s.Tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	u.SessionTokens = append(u.SessionTokens, tok)

	s.notify(ctx, u, mailer.TemplateWelcome)
	s.indexUser(ctx, u)
	return u, tok, nil
}

// Login verifies credentials and issues a fresh session token. Existing
// tokens stay valid; sessions accumulate across devices.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, string, error) {
	u, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, "", ErrInvalidCredentials
	}

	tok, err := s.Tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	u.SessionTokens = append(u.SessionTokens, tok)
	return u, tok, nil
}

// Logout revokes exactly the presented token.
func (s *Service) Logout(ctx context.Context, u *entity.User, token string) error {
	return s.Tokens.Revoke(ctx, u.ID, token)
}

// LogoutAll revokes every session token the user holds.
func (s *Service) LogoutAll(ctx context.Context, u *entity.User) error {
	return s.Tokens.RevokeAll(ctx, u.ID)
}

// allowed profile-update fields; anything else fails validation before any
// field is applied.
var allowedUpdates = map[string]bool{
	"name":     true,
	"email":    true,
	"password": true,
	"age":      true,
}

// UpdateProfile applies an allow-listed field map to the user record.
// Password changes are re-hashed; email changes are re-normalized and
// re-checked for uniqueness. Existing sessions stay valid.
func (s *Service) UpdateProfile(ctx context.Context, u *entity.User, fields map[string]any) (*entity.User, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}
	for k := range fields {
		if !allowedUpdates[k] {
			return nil, fmt.Errorf("%w: unknown field %q", ErrValidation, k)
		}
	}

	for k, v := range fields {
		switch k {
		case "name":
			name, ok := v.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("%w: name must be a non-empty string", ErrValidation)
			}
			u.Name = name
		case "email":
			raw, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: email must be a string", ErrValidation)
			}
			email := NormalizeEmail(raw)
			if err := validate.Var(email, "required,email"); err != nil {
				return nil, fmt.Errorf("%w: email is malformed", ErrValidation)
			}
			u.Email = email
		case "password":
			plain, ok := v.(string)
			if !ok || !validation.PasswordOK(plain) {
				return nil, fmt.Errorf("%w: password is too weak", ErrValidation)
			}
			hash, err := helpers.HashPassword(plain)
			if err != nil {
				return nil, err
			}
			u.Password = hash
		case "age":
			age, ok := v.(float64) // JSON numbers decode as float64
			if !ok || age != float64(int(age)) || age < 0 {
				return nil, fmt.Errorf("%w: age must be a non-negative integer", ErrValidation)
			}
			u.Age = int(age)
		}
	}

	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: email already in use", ErrValidation)
		}
		return nil, err
	}

	s.indexUser(ctx, u)
	return u, nil
}

// Delete removes the user record (the avatar and session set go with it)
// and publishes a best-effort cancellation notification.
func (s *Service) Delete(ctx context.Context, u *entity.User) error {
	if err := s.Repo.Delete(ctx, u.ID); err != nil {
		return err
	}
	s.notify(ctx, u, mailer.TemplateCancellation)
	s.deindexUser(ctx, u.ID)
	return nil
}

// SetAvatar normalizes the upload and stores it, replacing any prior avatar
// in one write.
func (s *Service) SetAvatar(ctx context.Context, u *entity.User, data []byte) error {
	normalized, err := avatar.Normalize(data)
	if err != nil {
		return err
	}
	return s.Repo.SetAvatar(ctx, u.ID, normalized)
}

// ClearAvatar removes the stored avatar; clearing an absent avatar is not
// an error.
func (s *Service) ClearAvatar(ctx context.Context, u *entity.User) error {
	err := s.Repo.ClearAvatar(ctx, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Avatar returns the stored canonical avatar bytes for any user id.
func (s *Service) Avatar(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.Repo.GetAvatar(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return data, err
}

// GetByID loads a user for the auth gate. A missing record maps to
// ErrUserNotFound; storage failures propagate unchanged.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// notify publishes an email job to the queue. Failures are logged and never
// propagate; notification latency must not block account operations.
func (s *Service) notify(ctx context.Context, u *entity.User, template string) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{To: u.Email, Template: template, Data: map[string]any{"Name": u.Name}}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", template).Warn("notification publish failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	doc := map[string]any{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"age":        u.Age,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
}

func (s *Service) deindexUser(ctx context.Context, userID string) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: userID}

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("es delete failed")
		}
		return
	}
	_ = res.Body.Close()
}

// SearchUsers performs a multi_match search on email and name. It returns
// an empty result when search is not configured.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
