package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/astevko/htmx-message-board/internal/config"
	"github.com/astevko/htmx-message-board/internal/model"
	postgresClient "github.com/astevko/htmx-message-board/internal/platform/postgres"
	redisClient "github.com/astevko/htmx-message-board/internal/platform/redis"
	"github.com/astevko/htmx-message-board/internal/repository"
	"github.com/astevko/htmx-message-board/internal/worker"

	rabbitmqClient "github.com/astevko/htmx-message-board/internal/platform/rabbitmq"
)

type App struct {
	Config      *config.Config
	DB          *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	AuditWorker *worker.AuditWorker
	Logger      *zap.SugaredLogger
	SecurityLog *zap.SugaredLogger

	StartedAt time.Time
}

func New(ctx context.Context, logger *zap.SugaredLogger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := postgresClient.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Message{}, &model.AuditEvent{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	messageRepo := repository.NewMessageRepository(db)
	if err := seedDemoMessages(messageRepo); err != nil {
		return nil, err
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	auditRepo := repository.NewAuditRepository(db)
	auditWorker := worker.NewAuditWorker(mqConn, auditRepo, cfg.RabbitMQ.AuditQueue, logger)
	if err := auditWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start audit worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		DB:          db,
		Redis:       redisCli,
		MQConn:      mqConn,
		AuditWorker: auditWorker,
		Logger:      logger,
		SecurityLog: logger.Named("security"),
		StartedAt:   time.Now(),
	}, nil
}

// seedDemoMessages fills an empty board so a fresh deployment has
// something to show.
func seedDemoMessages(repo *repository.MessageRepository) error {
	count, err := repo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	demo := []model.Message{
		{Text: "This is a demo message", CreatedAt: now.Add(-1 * time.Minute)},
		{Text: "Welcome to the message board!", CreatedAt: now.Add(-5 * time.Minute)},
		{Text: "Try adding your own message!", CreatedAt: now.Add(-1 * time.Hour)},
	}
	for i := range demo {
		if err := repo.Create(&demo[i]); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
