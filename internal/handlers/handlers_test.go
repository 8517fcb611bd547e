package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hryhorenko/commentsapp/internal/cache"
	"github.com/hryhorenko/commentsapp/internal/captcha"
	"github.com/hryhorenko/commentsapp/internal/handlers"
	"github.com/hryhorenko/commentsapp/internal/models"
	"github.com/hryhorenko/commentsapp/internal/repo"
	"github.com/hryhorenko/commentsapp/internal/service/auth"
	"github.com/hryhorenko/commentsapp/internal/service/comment"
	"github.com/hryhorenko/commentsapp/internal/storage"
	"github.com/hryhorenko/commentsapp/internal/tokens"
	httpserver "github.com/hryhorenko/commentsapp/internal/transport/http"
)

type testApp struct {
	e     *echo.Echo
	auth  *auth.Service
	store *cache.Memory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to connect to in-memory db")
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Role{}, &models.Comment{}, &models.RefreshToken{}))

	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)

	issuer := tokens.NewIssuer([]byte("test-jwt-secret"))
	authSvc := &auth.Service{
		Users:   &repo.UserRepo{DB: db},
		Ledger:  &repo.RefreshTokenRepo{DB: db},
		Issuer:  issuer,
		BaseURL: "http://localhost:8080",
	}
	commentSvc := &comment.Service{
		Comments: &repo.CommentRepo{DB: db},
		Files:    files,
	}
	store := cache.NewMemory()
	captchaSvc := captcha.New(store, rand.New(rand.NewSource(1)))

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{Auth: authSvc},
		CommentHandler: &handlers.CommentHandler{Comments: commentSvc},
		CaptchaHandler: &handlers.CaptchaHandler{Captcha: captchaSvc},
		SearchHandler:  &handlers.SearchHandler{},
		Issuer:         issuer,
		UploadDir:      files.Dir,
	})

	return &testApp{e: e, auth: authSvc, store: store}
}

func (a *testApp) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, email, username string) *auth.Session {
	t.Helper()

	rec := a.doJSON(http.MethodPost, "/api/v1/register", echo.Map{
		"email":    email,
		"username": username,
		"password": "password123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return &session
}

func TestRegisterEndpoint(t *testing.T) {
	app := newTestApp(t)

	session := app.register(t, "illia@example.com", "illia")
	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, "illia", session.User.Username)

	// Duplicate registration conflicts.
	rec := app.doJSON(http.MethodPost, "/api/v1/register", echo.Map{
		"email":    "illia@example.com",
		"username": "someone-else",
		"password": "password123",
		"name":     "Test User",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed email never reaches the service.
	rec = app.doJSON(http.MethodPost, "/api/v1/register", echo.Map{
		"email":    "not-an-email",
		"username": "third",
		"password": "password123",
		"name":     "Test User",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterEndpoint_SetsRefreshCookie(t *testing.T) {
	app := newTestApp(t)

	rec := app.doJSON(http.MethodPost, "/api/v1/register", echo.Map{
		"email":    "illia@example.com",
		"username": "illia",
		"password": "password123",
		"name":     "Test User",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "refreshToken", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "illia@example.com", "illia")

	rec := app.doJSON(http.MethodPost, "/api/v1/login", echo.Map{
		"email":    "illia@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "illia@example.com", password: "nope"},
		{name: "unknown email", email: "ghost@example.com", password: "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.doJSON(http.MethodPost, "/api/v1/login", echo.Map{
				"email":    tt.email,
				"password": tt.password,
			})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRefreshEndpoint_RotatesAndRevokes(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	rec := app.doJSON(http.MethodPost, "/api/v1/refresh", echo.Map{
		"refresh_token": session.RefreshToken,
		"user":          session.User,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// The replaced value is no longer accepted.
	rec = app.doJSON(http.MethodPost, "/api/v1/refresh", echo.Map{
		"refresh_token": session.RefreshToken,
		"user":          session.User,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint_FallsBackToCookie(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	body, _ := json.Marshal(echo.Map{"user": session.User})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/refresh", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: session.RefreshToken})
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogoutEndpoint(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	rec := app.doJSON(http.MethodPost, "/api/v1/logout", echo.Map{
		"refresh_token": session.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cookie is cleared on the way out.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "refreshToken", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)

	// Second logout with the same value is rejected, not a crash.
	rec = app.doJSON(http.MethodPost, "/api/v1/logout", echo.Map{
		"refresh_token": session.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmEmailEndpoint(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	user, err := app.auth.Users.FindByID(context.Background(), session.User.ID)
	require.NoError(t, err)
	token := app.auth.ConfirmationToken(user)

	rec := app.doJSON(http.MethodGet,
		fmt.Sprintf("/api/v1/confirmemail?userId=%d&token=%s", user.ID, "wrong"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.doJSON(http.MethodGet,
		fmt.Sprintf("/api/v1/confirmemail?userId=%d&token=%s", user.ID, token), nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	confirmed, err := app.auth.Users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
}

func TestCreateComment_RequiresBearerToken(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/comments", strings.NewReader("text=hi"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/comments", strings.NewReader("text=hi"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndListComments(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	create := func(text, parentID string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("text", text))
		if parentID != "" {
			require.NoError(t, w.WriteField("parent_id", parentID))
		}
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/comments", &buf)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.AccessToken)
		rec := httptest.NewRecorder()
		app.e.ServeHTTP(rec, req)
		return rec
	}

	rec := create("root comment", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var root comment.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "illia", root.Username)

	rec = create("a reply", fmt.Sprint(root.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = create("orphan", "9999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.doJSON(http.MethodGet, "/api/v1/comments?sortBy=createddate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []comment.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	require.Len(t, views[0].Replies, 1)
	assert.Equal(t, "a reply", views[0].Replies[0].Text)
}

func TestCreateComment_WithAttachment(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", "with file"))
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("file body"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/comments", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view comment.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "notes.txt", view.FileName)
	assert.True(t, strings.HasPrefix(view.FilePath, "/uploads/"))
}

func TestUpdateAndDeleteComment(t *testing.T) {
	app := newTestApp(t)
	session := app.register(t, "illia@example.com", "illia")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", "original"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/comments", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.AccessToken)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created comment.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	update := func(id uint, text string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(echo.Map{"text": text})
		req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/comments/%d", id), bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.AccessToken)
		rec := httptest.NewRecorder()
		app.e.ServeHTTP(rec, req)
		return rec
	}

	rec = update(created.ID, "edited")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated comment.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "edited", updated.Text)

	assert.Equal(t, http.StatusNotFound, update(9999, "nobody").Code)

	del := func(id uint) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/comments/%d", id), nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+session.AccessToken)
		rec := httptest.NewRecorder()
		app.e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, del(created.ID).Code)
	assert.Equal(t, http.StatusNotFound, del(created.ID).Code)
}

func TestCaptchaEndpoints(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/captcha", nil)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	id := rec.Header().Get("Captcha-Id")
	require.NotEmpty(t, id)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	code, err := app.store.Get(context.Background(), id)
	require.NoError(t, err)

	rec = app.doJSON(http.MethodPost, "/api/v1/captcha/validate", echo.Map{
		"captcha_id": id,
		"user_input": code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_valid":true`)

	rec = app.doJSON(http.MethodPost, "/api/v1/captcha/validate", echo.Map{
		"captcha_id": id,
		"user_input": "WRONG",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_valid":false`)
}
