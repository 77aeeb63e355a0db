package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/astevko/htmx-message-board/internal/pkg/jwtutil"
)

const guardSecret = "guard-secret"

func newGuardedRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", SessionAuth(guardSecret, nil), func(c *gin.Context) {
		subject := c.GetString(ContextSubjectKey)
		timezone := c.GetString(ContextTimezoneKey)
		c.String(http.StatusOK, subject+"|"+timezone)
	})
	return router
}

func requestWithCookies(t *testing.T, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/protected", nil)
	require.NoError(t, err)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	newGuardedRouter(t).ServeHTTP(rr, req)
	return rr
}

func TestSessionAuthValidToken(t *testing.T) {
	token, err := jwtutil.GenerateToken(guardSecret, 30*time.Minute, "user@example.com", "Europe/Paris", jwtutil.TokenTypeAccess)
	require.NoError(t, err)

	rr := requestWithCookies(t,
		&http.Cookie{Name: SessionCookieName, Value: token},
		&http.Cookie{Name: TimezoneCookieName, Value: "Europe/Paris"},
	)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "user@example.com|Europe/Paris", rr.Body.String())
}

func TestSessionAuthRejectionsLookIdentical(t *testing.T) {
	expired, err := jwtutil.GenerateToken(guardSecret, -1*time.Minute, "user@example.com", "UTC", jwtutil.TokenTypeAccess)
	require.NoError(t, err)
	forged, err := jwtutil.GenerateToken("other-secret", 30*time.Minute, "user@example.com", "UTC", jwtutil.TokenTypeAccess)
	require.NoError(t, err)

	cases := map[string][]*http.Cookie{
		"no cookie": nil,
		"malformed": {
			{Name: SessionCookieName, Value: "garbage"},
			{Name: TimezoneCookieName, Value: "UTC"},
		},
		"bad signature": {
			{Name: SessionCookieName, Value: forged},
			{Name: TimezoneCookieName, Value: "UTC"},
		},
		"expired": {
			{Name: SessionCookieName, Value: expired},
			{Name: TimezoneCookieName, Value: "UTC"},
		},
	}

	for name, cookies := range cases {
		t.Run(name, func(t *testing.T) {
			rr := requestWithCookies(t, cookies...)
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Equal(t, "Not authenticated", rr.Body.String())
			require.Equal(t, "/", rr.Header().Get("HX-Redirect"))
		})
	}
}

func TestSessionAuthTimezoneCookieMismatch(t *testing.T) {
	token, err := jwtutil.GenerateToken(guardSecret, 30*time.Minute, "user@example.com", "Europe/Paris", jwtutil.TokenTypeAccess)
	require.NoError(t, err)

	rr := requestWithCookies(t,
		&http.Cookie{Name: SessionCookieName, Value: token},
		&http.Cookie{Name: TimezoneCookieName, Value: "Asia/Tokyo"},
	)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Not authenticated", rr.Body.String())
}

func TestSessionAuthRefreshTokenRejected(t *testing.T) {
	token, err := jwtutil.GenerateToken(guardSecret, time.Hour, "user@example.com", "UTC", jwtutil.TokenTypeRefresh)
	require.NoError(t, err)

	rr := requestWithCookies(t,
		&http.Cookie{Name: SessionCookieName, Value: token},
		&http.Cookie{Name: TimezoneCookieName, Value: "UTC"},
	)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
