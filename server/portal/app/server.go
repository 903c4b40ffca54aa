package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"pyrus_portal/server/common/infra/cache"
	"pyrus_portal/server/common/infra/db"
	"pyrus_portal/server/common/infra/mq"
	"pyrus_portal/server/common/infra/object"
	"pyrus_portal/server/common/integrations/highlevel"
	"pyrus_portal/server/common/integrations/mailgun"
	"pyrus_portal/server/portal/api"
	"pyrus_portal/server/portal/repository"
	"pyrus_portal/server/portal/service"
)

type Server struct {
	HTTPServer *http.Server
	DB         *pgxpool.Pool
	Redis      *redis.Client
	MQConn     *amqp.Connection
	Publisher  *service.EventPublisher
	Alerts     *service.AlertService
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPool, err := db.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres: %w", err)
	}

	redisClient := cache.NewClient(cfg.RedisAddr)
	if err := cache.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	var (
		mqConn    *amqp.Connection
		publisher *service.EventPublisher
	)
	if cfg.UseMQ {
		mqConn, err = mq.NewConnection(cfg.LavinMQURL)
		if err != nil {
			return nil, fmt.Errorf("initialize lavinmq: %w", err)
		}
		publisher, err = service.NewEventPublisher(mqConn)
		if err != nil {
			return nil, fmt.Errorf("initialize event publisher: %w", err)
		}
	}

	minioClient, err := object.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	if err != nil {
		return nil, fmt.Errorf("initialize minio: %w", err)
	}
	if err := object.EnsureBucket(ctx, minioClient, cfg.MinIOBucket); err != nil {
		return nil, fmt.Errorf("ensure report bucket: %w", err)
	}

	crmClient := highlevel.NewClient(highlevel.Config{
		APIKey:     cfg.HighLevelAPIKey,
		LocationID: cfg.HighLevelLocationID,
		BaseURL:    cfg.HighLevelBaseURL,
		Timeout:    cfg.HighLevelTimeout,
	})
	mailClient := mailgun.NewClient(mailgun.Config{
		APIKey:  cfg.MailgunAPIKey,
		Domain:  cfg.MailgunDomain,
		Sender:  cfg.MailgunSender,
		BaseURL: cfg.MailgunBaseURL,
	})

	commRepo := repository.NewCommunicationRepository(dbPool)
	clientRepo := repository.NewClientRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)
	pipelineRepo := repository.NewPipelineRepository(dbPool)
	catalogRepo := repository.NewCatalogRepository(dbPool)
	templateRepo := repository.NewTemplateRepository(dbPool)
	subRepo := repository.NewSubscriptionRepository(dbPool)
	alertRepo := repository.NewAlertRepository(dbPool)

	alertSvc := service.NewAlertService(alertRepo, redisClient, publisher)
	bridge := service.NewHighLevelBridge(crmClient, clientRepo, alertSvc)
	commSvc := service.NewCommunicationService(commRepo, clientRepo, bridge)
	emailSvc := service.NewEmailService(mailClient, templateRepo, commRepo, alertSvc)
	clientSvc := service.NewClientService(clientRepo, emailSvc)
	userSvc := service.NewUserService(userRepo)
	pipelineSvc := service.NewPipelineService(pipelineRepo)
	reportSvc := service.NewReportService(minioClient, cfg.MinIOBucket, commRepo)

	h := api.NewHandler(api.Deps{
		Communications: commSvc,
		Clients:        clientSvc,
		Users:          userSvc,
		Emails:         emailSvc,
		Pipeline:       pipelineSvc,
		Reports:        reportSvc,
		Catalog:        catalogRepo,
		Templates:      templateRepo,
		Subscriptions:  subRepo,
		Alerts:         alertRepo,
	}, cfg.JWTSecret, cfg.JWTTTLMinutes)

	r := gin.Default()
	h.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTPServer: httpServer,
		DB:         dbPool,
		Redis:      redisClient,
		MQConn:     mqConn,
		Publisher:  publisher,
		Alerts:     alertSvc,
	}, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Alerts != nil {
		s.Alerts.Flush()
	}
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.MQConn != nil {
		_ = s.MQConn.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		defer s.DB.Close()
	}
	return s.HTTPServer.Shutdown(ctx)
}
