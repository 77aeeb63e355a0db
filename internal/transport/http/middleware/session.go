package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astevko/htmx-message-board/internal/pkg/jwtutil"
)

const (
	SessionCookieName  = "session_token"
	RefreshCookieName  = "refresh_token"
	TimezoneCookieName = "user_timezone"

	ContextSubjectKey  = "subject"
	ContextTimezoneKey = "timezone"
)

// SessionAuth gates protected routes on the session cookie. Every rejection
// reason (missing cookie, garbled token, bad signature, expiry, timezone
// mismatch) is surfaced to the client identically; only the log tells them
// apart.
func SessionAuth(secret string, logger *zap.SugaredLogger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil {
			rejectSession(c, logger, "no session cookie")
			return
		}

		claims, err := jwtutil.ParseToken(secret, token, jwtutil.TokenTypeAccess)
		if err != nil {
			rejectSession(c, logger, sessionFailureReason(err))
			return
		}

		// The timezone cookie is set alongside the token at login and must
		// still agree with the tz claim.
		tzCookie, err := c.Cookie(TimezoneCookieName)
		if err != nil || tzCookie != claims.Timezone {
			rejectSession(c, logger, "timezone cookie mismatch")
			return
		}

		c.Set(ContextSubjectKey, claims.Subject)
		c.Set(ContextTimezoneKey, claims.Timezone)
		c.Next()
	}
}

func rejectSession(c *gin.Context, logger *zap.SugaredLogger, reason string) {
	logger.Infow("session rejected", "reason", reason, "path", c.Request.URL.Path, "client_ip", c.ClientIP())

	// Same response for every rejection; HX-Redirect sends HTMX callers
	// back to the login page.
	c.Header("HX-Redirect", "/")
	c.String(http.StatusUnauthorized, "Not authenticated")
	c.Abort()
}

func sessionFailureReason(err error) string {
	switch {
	case errors.Is(err, jwtutil.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtutil.ErrBadSignature):
		return "bad token signature"
	case errors.Is(err, jwtutil.ErrWrongType):
		return "wrong token type"
	default:
		return "malformed token"
	}
}
