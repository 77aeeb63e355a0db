package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/astevko/htmx-message-board/internal/app"
	"github.com/astevko/htmx-message-board/internal/model"
	"github.com/astevko/htmx-message-board/internal/transport/http/middleware"
	"github.com/astevko/htmx-message-board/internal/transport/http/templates"
)

const testJWTSecret = "test-access-secret"

type memStore struct {
	messages []model.Message
	nextID   uint
}

func (s *memStore) Create(message *model.Message) error {
	s.nextID++
	message.ID = s.nextID
	s.messages = append(s.messages, *message)
	return nil
}

func (s *memStore) ListRecent() ([]model.Message, error) {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *memStore) Count() (int64, error) { return int64(len(s.messages)), nil }

func (s *memStore) Search(term string) ([]model.Message, error) {
	all, _ := s.ListRecent()
	var out []model.Message
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Text), strings.ToLower(term)) {
			out = append(out, m)
		}
	}
	return out, nil
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (l stubLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return l.allowed, l.err
}

func newTestRouter(t *testing.T, limiter LoginLimiter) (*gin.Engine, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	credential, err := app.NewCredential("user@example.com", "12341234")
	require.NoError(t, err)
	authService := app.NewAuthService(credential, testJWTSecret, "test-refresh-secret", 30*time.Minute, 7*24*time.Hour, nil, nil)

	store := &memStore{}
	boardService := app.NewBoardService(store)

	authHandler := NewAuthHandler(authService, limiter, false, 365*24*time.Hour, nil)
	boardHandler := NewBoardHandler(boardService, nil)
	sessionAuth := middleware.SessionAuth(testJWTSecret, nil)

	router := gin.New()
	router.SetHTMLTemplate(templates.Load())
	router.GET("/", boardHandler.LoginPage)
	router.GET("/msgs", sessionAuth, boardHandler.Dashboard)
	api := router.Group("/api")
	api.POST("/login", authHandler.Login)
	api.GET("/logout", authHandler.Logout)
	api.POST("/refresh", authHandler.Refresh)
	api.POST("/message", sessionAuth, boardHandler.CreateMessage)
	api.GET("/messages", sessionAuth, boardHandler.ListMessages)
	api.GET("/messages/search", sessionAuth, boardHandler.SearchMessages)

	return router, store
}

func doLogin(t *testing.T, router *gin.Engine, username, password, timezone string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("user_timezone", timezone)

	req, err := http.NewRequest(http.MethodPost, "/api/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func sessionCookies(t *testing.T, rr *httptest.ResponseRecorder) []*http.Cookie {
	t.Helper()
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func authedRequest(t *testing.T, router *gin.Engine, method, target, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginSuccess(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doLogin(t, router, "user@example.com", "12341234", "America/New_York")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/msgs", rr.Header().Get("HX-Redirect"))
	require.Contains(t, rr.Body.String(), "Login successful")

	cookies := sessionCookies(t, rr)
	session := cookieByName(cookies, middleware.SessionCookieName)
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)
	require.NotEmpty(t, session.Value)
	require.NotNil(t, cookieByName(cookies, middleware.RefreshCookieName))

	tz := cookieByName(cookies, middleware.TimezoneCookieName)
	require.NotNil(t, tz)
	require.Equal(t, "America/New_York", tz.Value)

	// The fresh session grants access to the protected list.
	list := authedRequest(t, router, http.MethodGet, "/api/messages", "", cookies)
	require.Equal(t, http.StatusOK, list.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := doLogin(t, router, "user@example.com", "wrong", "UTC")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Invalid username or password")
	require.Empty(t, rr.Header().Get("HX-Redirect"))
	require.Nil(t, cookieByName(rr.Result().Cookies(), middleware.SessionCookieName))
}

func TestLoginWrongUsernameSameError(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	wrongPassword := doLogin(t, router, "user@example.com", "wrong", "UTC")
	wrongUsername := doLogin(t, router, "nobody@example.com", "12341234", "UTC")

	require.Equal(t, wrongPassword.Body.String(), wrongUsername.Body.String())
}

func TestLoginRateLimited(t *testing.T) {
	router, _ := newTestRouter(t, stubLimiter{allowed: false})

	rr := doLogin(t, router, "user@example.com", "12341234", "UTC")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Nil(t, cookieByName(rr.Result().Cookies(), middleware.SessionCookieName))
}

func TestLoginLimiterOutageFailsOpen(t *testing.T) {
	router, _ := newTestRouter(t, stubLimiter{err: errors.New("redis down")})

	rr := doLogin(t, router, "user@example.com", "12341234", "UTC")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/msgs", rr.Header().Get("HX-Redirect"))
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, target := range []string{"/msgs", "/api/messages", "/api/messages/search"} {
		rr := authedRequest(t, router, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}

	rr := authedRequest(t, router, http.MethodPost, "/api/message", "message=hi", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateMessageAndListNewestFirst(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	post := authedRequest(t, router, http.MethodPost, "/api/message", "message=hi+there", cookies)
	require.Equal(t, http.StatusOK, post.Code)
	require.Contains(t, post.Body.String(), "hi there")

	second := authedRequest(t, router, http.MethodPost, "/api/message", "message=newer+message", cookies)
	require.Equal(t, http.StatusOK, second.Code)

	list := authedRequest(t, router, http.MethodGet, "/api/messages", "", cookies)
	require.Equal(t, http.StatusOK, list.Code)
	body := list.Body.String()
	require.Contains(t, body, "hi there")
	require.Contains(t, body, "newer message")
	require.Less(t, strings.Index(body, "newer message"), strings.Index(body, "hi there"))
}

func TestCreateMessageValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	empty := authedRequest(t, router, http.MethodPost, "/api/message", "message=", cookies)
	require.Equal(t, http.StatusBadRequest, empty.Code)
	require.Contains(t, empty.Body.String(), "empty")

	oversized := authedRequest(t, router, http.MethodPost, "/api/message", "message="+strings.Repeat("a", 501), cookies)
	require.Equal(t, http.StatusBadRequest, oversized.Code)
	require.Contains(t, oversized.Body.String(), "500")
}

func TestListMessagesInvalidTimezoneFallsBack(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "Invalid/Zone"))

	post := authedRequest(t, router, http.MethodPost, "/api/message", "message=tz+check", cookies)
	require.Equal(t, http.StatusOK, post.Code)

	list := authedRequest(t, router, http.MethodGet, "/api/messages", "", cookies)
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "UTC")
}

func TestListMessagesTimezoneQueryOverride(t *testing.T) {
	router, store := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	require.NoError(t, store.Create(&model.Message{
		Text:      "summer message",
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}))

	list := authedRequest(t, router, http.MethodGet, "/api/messages?tz=America/New_York", "", cookies)
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "2024-06-01 08:00:00 EDT")
}

func TestSearchMessages(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	for _, body := range []string{"message=hello+world", "message=goodbye", "message=hello+again"} {
		rr := authedRequest(t, router, http.MethodPost, "/api/message", body, cookies)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	search := authedRequest(t, router, http.MethodGet, "/api/messages/search?q=hello", "", cookies)
	require.Equal(t, http.StatusOK, search.Code)
	require.Contains(t, search.Body.String(), "hello world")
	require.Contains(t, search.Body.String(), "hello again")
	require.NotContains(t, search.Body.String(), "goodbye")
}

func TestRefreshIssuesNewSessionCookie(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	refresh := cookieByName(cookies, middleware.RefreshCookieName)
	require.NotNil(t, refresh)

	rr := authedRequest(t, router, http.MethodPost, "/api/refresh", "", []*http.Cookie{refresh})
	require.Equal(t, http.StatusOK, rr.Code)

	newSession := cookieByName(rr.Result().Cookies(), middleware.SessionCookieName)
	require.NotNil(t, newSession)
	require.NotEmpty(t, newSession.Value)
}

func TestRefreshWithoutCookie(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := authedRequest(t, router, http.MethodPost, "/api/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutClearsCookies(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	cookies := sessionCookies(t, doLogin(t, router, "user@example.com", "12341234", "UTC"))

	rr := authedRequest(t, router, http.MethodGet, "/api/logout", "", cookies)
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "/", rr.Header().Get("Location"))

	for _, name := range []string{middleware.SessionCookieName, middleware.RefreshCookieName, middleware.TimezoneCookieName} {
		cleared := cookieByName(rr.Result().Cookies(), name)
		require.NotNil(t, cleared, name)
		require.Empty(t, cleared.Value, name)
		require.Less(t, cleared.MaxAge, 0, name)
	}
}

func TestLoginPageIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := authedRequest(t, router, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "/api/login")
}
