package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/astevko/htmx-message-board/internal/app"
	"github.com/astevko/htmx-message-board/internal/transport/http/middleware"
)

// LoginLimiter throttles login attempts per client.
type LoginLimiter interface {
	Allow(ctx context.Context, clientIP string) (bool, error)
}

type AuthHandler struct {
	authService  *app.AuthService
	limiter      LoginLimiter
	cookieSecure bool
	tzCookieTTL  time.Duration
	logger       *zap.SugaredLogger
}

type LoginRequest struct {
	Username     string `form:"username" binding:"required,max=50"`
	Password     string `form:"password" binding:"required,max=100"`
	UserTimezone string `form:"user_timezone" binding:"required,max=50"`
}

func NewAuthHandler(
	authService *app.AuthService,
	limiter LoginLimiter,
	cookieSecure bool,
	tzCookieTTL time.Duration,
	logger *zap.SugaredLogger,
) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AuthHandler{
		authService:  authService,
		limiter:      limiter,
		cookieSecure: cookieSecure,
		tzCookieTTL:  tzCookieTTL,
		logger:       logger,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Limiter outage must not lock everyone out.
			h.logger.Warnw("login limiter check failed", "error", err)
		} else if !allowed {
			c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			return
		}
	}

	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusOK, "login_error.html", gin.H{"Error": "Invalid username or password"})
		return
	}

	if err := h.authService.Authenticate(req.Username, req.Password, c.ClientIP()); err != nil {
		// Same message whichever field was wrong.
		c.HTML(http.StatusOK, "login_error.html", gin.H{"Error": "Invalid username or password"})
		return
	}

	tokens, err := h.authService.IssueSession(req.Username, req.UserTimezone)
	if err != nil {
		h.logger.Errorw("issue session failed", "error", err)
		c.HTML(http.StatusOK, "login_error.html", gin.H{"Error": "Login failed, try again"})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, tokens.Access, int(h.authService.AccessTTL().Seconds()), "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.RefreshCookieName, tokens.Refresh, int(h.authService.RefreshTTL().Seconds()), "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.TimezoneCookieName, req.UserTimezone, int(h.tzCookieTTL.Seconds()), "/", "", h.cookieSecure, true)

	c.Header("HX-Redirect", "/msgs")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<div>Login successful! Redirecting...</div>"))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.RefreshCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.SetCookie(middleware.TimezoneCookieName, "", -1, "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, "/")
}

// Refresh trades the refresh cookie for a new access cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(middleware.RefreshCookieName)
	if err != nil {
		c.String(http.StatusUnauthorized, "Not authenticated")
		return
	}

	access, err := h.authService.Refresh(refreshToken)
	if err != nil {
		c.String(http.StatusUnauthorized, "Not authenticated")
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookieName, access, int(h.authService.AccessTTL().Seconds()), "/", "", h.cookieSecure, true)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<div>Token refreshed</div>"))
}
