package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/taskhub/account-api/internal/application"
	"github.com/taskhub/account-api/internal/infrastructure/memory"
	handlers "github.com/taskhub/account-api/internal/interface/http"
	"github.com/taskhub/account-api/internal/router"
	"github.com/taskhub/account-api/internal/router/modules"
	"github.com/taskhub/account-api/pkg/avatar"
	"github.com/taskhub/account-api/pkg/tokens"
	"github.com/taskhub/account-api/pkg/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validation.Init()
	os.Exit(m.Run())
}

func newTestServer() *gin.Engine {
	repo := memory.NewUserRepository()
	tm := tokens.NewManager("test-secret", 0, repo)
	svc := userapp.NewService(repo, tm, nil, nil, nil, "")
	handler := handlers.NewUserHandler(svc, nil)

	r := gin.New()
	reg := router.NewRegistry(r)
	reg.Add(modules.NewUserModule(handler, svc, tm))
	reg.RegisterAll()
	return r
}

type envelope struct {
	Status  int            `json:"status"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   any            `json:"error"`
}

func doJSON(r *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func registerUser(t *testing.T, r *gin.Engine, email string) (userID, token string) {
	t.Helper()
	w, env := doJSON(r, http.MethodPost, "/api/users", "", gin.H{
		"name":     "Alice",
		"email":    email,
		"password": "Secret123",
		"age":      30,
	})
	require.Equal(t, http.StatusCreated, w.Code, "register failed: %s", w.Body.String())

	user := env.Data["user"].(map[string]any)
	return user["id"].(string), env.Data["token"].(string)
}

func TestRegister_PayloadNeverContainsPasswordHash(t *testing.T) {
	r := newTestServer()

	w, env := doJSON(r, http.MethodPost, "/api/users", "", gin.H{
		"name":     "Alice",
		"email":    "a@b.com",
		"password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "Secret123")

	user := env.Data["user"].(map[string]any)
	assert.Equal(t, "a@b.com", user["email"])
	assert.NotEmpty(t, env.Data["token"])
}

func TestRegister_Invalid(t *testing.T) {
	r := newTestServer()

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"name": "A", "password": "Secret123"}},
		{"bad email", gin.H{"name": "A", "email": "nope", "password": "Secret123"}},
		{"weak password", gin.H{"name": "A", "email": "a@b.com", "password": "abc"}},
		{"password contains password", gin.H{"name": "A", "email": "a@b.com", "password": "password99"}},
		{"negative age", gin.H{"name": "A", "email": "a@b.com", "password": "Secret123", "age": -3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := doJSON(r, http.MethodPost, "/api/users", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	r := newTestServer()
	registerUser(t, r, "a@b.com")

	w, _ := doJSON(r, http.MethodPost, "/api/users", "", gin.H{
		"name":     "Other",
		"email":    "A@B.COM",
		"password": "Secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	r := newTestServer()
	registerUser(t, r, "a@b.com")

	w1, env1 := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "a@b.com", "password": "Wrong1234"})
	w2, env2 := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "ghost@b.com", "password": "Secret123"})

	assert.Equal(t, http.StatusBadRequest, w1.Code)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
	assert.Equal(t, env1.Message, env2.Message)
}

// Full lifecycle: register -> login -> logout(T1) -> logoutAll.
func TestSessionLifecycle(t *testing.T) {
	r := newTestServer()
	_, t1 := registerUser(t, r, "a@b.com")

	w, env := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "a@b.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	t2 := env.Data["token"].(string)
	require.NotEqual(t, t1, t2)

	// Both tokens are independently valid.
	w, _ = doJSON(r, http.MethodGet, "/api/users/me", t1, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(r, http.MethodGet, "/api/users/me", t2, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Logout with T1 revokes only T1.
	w, _ = doJSON(r, http.MethodPost, "/api/users/logout", t1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(r, http.MethodGet, "/api/users/me", t1, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = doJSON(r, http.MethodGet, "/api/users/me", t2, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// LogoutAll revokes the rest.
	w, _ = doJSON(r, http.MethodPost, "/api/users/logoutAll", t2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(r, http.MethodGet, "/api/users/me", t2, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateMe_RejectsUnknownField(t *testing.T) {
	r := newTestServer()
	_, tok := registerUser(t, r, "a@b.com")

	w, _ := doJSON(r, http.MethodPatch, "/api/users/me", tok, gin.H{"name": "Eve", "isAdmin": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Record unchanged.
	_, env := doJSON(r, http.MethodGet, "/api/users/me", tok, nil)
	assert.Equal(t, "Alice", env.Data["name"])
}

func TestUpdateMe_AppliesAllowedFields(t *testing.T) {
	r := newTestServer()
	_, tok := registerUser(t, r, "a@b.com")

	w, env := doJSON(r, http.MethodPatch, "/api/users/me", tok, gin.H{"name": "Alice B", "age": 31})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice B", env.Data["name"])
	assert.Equal(t, float64(31), env.Data["age"])
}

func uploadAvatar(r *gin.Engine, token string, field, filename string, payload []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile(field, filename)
	_, _ = fw.Write(payload)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/users/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAvatarUploadServeDelete(t *testing.T) {
	r := newTestServer()
	uid, tok := registerUser(t, r, "a@b.com")

	w := uploadAvatar(r, tok, "avatar", "me.png", testPNG(t, 640, 480))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Serving is public and returns the canonical png.
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%s/avatar", uid), nil)
	got := httptest.NewRecorder()
	r.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "image/png", got.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(got.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, avatar.Size, img.Bounds().Dx())
	assert.Equal(t, avatar.Size, img.Bounds().Dy())

	// Delete, then the public fetch 404s.
	wDel, _ := doJSON(r, http.MethodDelete, "/api/users/me/avatar", tok, nil)
	require.Equal(t, http.StatusOK, wDel.Code)

	got = httptest.NewRecorder()
	r.ServeHTTP(got, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%s/avatar", uid), nil))
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestAvatarUpload_RejectsNonImage(t *testing.T) {
	r := newTestServer()
	_, tok := registerUser(t, r, "a@b.com")

	w := uploadAvatar(r, tok, "avatar", "notes.txt", []byte("just some text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvatarUpload_MissingFile(t *testing.T) {
	r := newTestServer()
	_, tok := registerUser(t, r, "a@b.com")

	w := uploadAvatar(r, tok, "wrongfield", "me.png", testPNG(t, 10, 10))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAccount(t *testing.T) {
	r := newTestServer()
	uid, t1 := registerUser(t, r, "a@b.com")

	_, env := doJSON(r, http.MethodPost, "/api/users/login", "", gin.H{"email": "a@b.com", "password": "Secret123"})
	t2 := env.Data["token"].(string)

	w := uploadAvatar(r, t1, "avatar", "me.png", testPNG(t, 80, 80))
	require.Equal(t, http.StatusOK, w.Code)

	wDel, _ := doJSON(r, http.MethodDelete, "/api/users/me", t1, nil)
	require.Equal(t, http.StatusOK, wDel.Code)

	// Every prior token is dead.
	for _, tok := range []string{t1, t2} {
		got, _ := doJSON(r, http.MethodGet, "/api/users/me", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, got.Code)
	}

	// And the avatar is gone with the record.
	got := httptest.NewRecorder()
	r.ServeHTTP(got, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%s/avatar", uid), nil))
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := newTestServer()

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/users/logout"},
		{http.MethodPost, "/api/users/logoutAll"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodPatch, "/api/users/me"},
		{http.MethodDelete, "/api/users/me"},
		{http.MethodDelete, "/api/users/me/avatar"},
	} {
		w, _ := doJSON(r, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}
