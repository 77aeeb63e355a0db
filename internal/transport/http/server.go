package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "github.com/astevko/htmx-message-board/internal/app"
	"github.com/astevko/htmx-message-board/internal/bootstrap"
	"github.com/astevko/htmx-message-board/internal/cache"
	"github.com/astevko/htmx-message-board/internal/platform/rabbitmq"
	"github.com/astevko/htmx-message-board/internal/repository"
	"github.com/astevko/htmx-message-board/internal/transport/http/handler"
	"github.com/astevko/htmx-message-board/internal/transport/http/middleware"
	"github.com/astevko/htmx-message-board/internal/transport/http/templates"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.SecurityHeaders())
	router.SetHTMLTemplate(templates.Load())

	credential, err := appsvc.NewCredential(app.Config.Auth.DemoUsername, app.Config.Auth.DemoPassword)
	if err != nil {
		return nil, err
	}

	auditPub := rabbitmq.NewAuditPublisher(app.MQConn, app.Config.RabbitMQ.AuditQueue)
	authService := appsvc.NewAuthService(
		credential,
		app.Config.Auth.JWTSecret,
		app.Config.Auth.JWTRefreshSecret,
		time.Duration(app.Config.Auth.AccessExpireMinute)*time.Minute,
		time.Duration(app.Config.Auth.RefreshExpireDay)*24*time.Hour,
		auditPub,
		app.SecurityLog,
	)
	boardService := appsvc.NewBoardService(repository.NewMessageRepository(app.DB))

	limiter := cache.NewLoginLimiter(
		app.Redis,
		app.Config.RateLimit.LoginAttempts,
		time.Duration(app.Config.RateLimit.LoginWindowSecond)*time.Second,
	)

	authHandler := handler.NewAuthHandler(
		authService,
		limiter,
		app.Config.Auth.CookieSecure,
		time.Duration(app.Config.Auth.TimezoneCookieDay)*24*time.Hour,
		app.Logger,
	)
	boardHandler := handler.NewBoardHandler(boardService, app.Logger)
	healthHandler := handler.NewHealthHandler(app)

	sessionAuth := middleware.SessionAuth(app.Config.Auth.JWTSecret, app.SecurityLog)

	router.GET("/", boardHandler.LoginPage)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/msgs", sessionAuth, boardHandler.Dashboard)

	api := router.Group("/api")
	api.POST("/login", authHandler.Login)
	api.GET("/logout", authHandler.Logout)
	api.POST("/refresh", authHandler.Refresh)
	api.POST("/message", sessionAuth, boardHandler.CreateMessage)
	api.GET("/messages", sessionAuth, boardHandler.ListMessages)
	api.GET("/messages/search", sessionAuth, boardHandler.SearchMessages)

	return router, nil
}
