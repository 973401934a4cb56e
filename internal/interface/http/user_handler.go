package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/taskhub/account-api/internal/application"
	"github.com/taskhub/account-api/internal/domain/entity"
	"github.com/taskhub/account-api/internal/interface/middleware"
	"github.com/taskhub/account-api/pkg/avatar"
	"github.com/taskhub/account-api/pkg/response"
	"github.com/taskhub/account-api/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,accountpwd"`
	Age      int    `json:"age" binding:"gte=0"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// userJSON is the only read shape for user records; the password hash and
// avatar payload are never part of it.
func userJSON(u *entity.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"age":        u.Age,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
}

// fail maps service errors onto the response envelope. Unexpected failures
// are logged and surfaced as an opaque 500.
func (h *UserHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, userapp.ErrValidation):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, avatar.ErrUnsupportedMedia):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, userapp.ErrInvalidCredentials):
		response.Error[any](c, http.StatusBadRequest, "invalid credentials", nil)
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "not found", nil)
	default:
		if h.Logger != nil {
			h.Logger.WithError(err).Error("account operation failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

// Register handles POST /users.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, tok, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Age:      req.Age,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"user": userJSON(u), "token": tok}, "registered", nil)
}

// Login handles POST /users/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, tok, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": userJSON(u), "token": tok}, "login successful", nil)
}

// Logout handles POST /users/logout; only the presented token is revoked.
func (h *UserHandler) Logout(c *gin.Context) {
	u := middleware.User(c)
	if err := h.Svc.Logout(c.Request.Context(), u, middleware.Token(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// LogoutAll handles POST /users/logoutAll.
func (h *UserHandler) LogoutAll(c *gin.Context) {
	u := middleware.User(c)
	if err := h.Svc.LogoutAll(c.Request.Context(), u); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out everywhere", nil)
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, http.StatusOK, userJSON(middleware.User(c)), "profile", nil)
}

// UpdateMe handles PATCH /users/me. The body is a field map restricted to
// {name, email, password, age}; any other key rejects the whole request.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.User(c), fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, userJSON(u), "profile updated", nil)
}

// DeleteMe handles DELETE /users/me.
func (h *UserHandler) DeleteMe(c *gin.Context) {
	u := middleware.User(c)
	if err := h.Svc.Delete(c.Request.Context(), u); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, userJSON(u), "account deleted", nil)
}

// UploadAvatar handles POST /users/me/avatar (multipart field "avatar").
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	if fh.Size > avatar.MaxBytes {
		response.Error[any](c, http.StatusBadRequest, "avatar exceeds the 1MB limit", nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, avatar.MaxBytes+1))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := h.Svc.SetAvatar(c.Request.Context(), middleware.User(c), data); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"avatar_set": true}, "avatar updated", nil)
}

// DeleteAvatar handles DELETE /users/me/avatar.
func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := h.Svc.ClearAvatar(c.Request.Context(), middleware.User(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"avatar_cleared": true}, "avatar removed", nil)
}

// GetAvatar handles GET /users/:id/avatar (public); it serves the canonical
// PNG bytes directly.
func (h *UserHandler) GetAvatar(c *gin.Context) {
	data, err := h.Svc.Avatar(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Search handles GET /users/search?q=...&size=...
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", gin.H{"count": len(hits)})
}
