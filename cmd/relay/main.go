package main

import (
	"context"
	"fmt"
	"log"

	"modmail-relay/config"
	"modmail-relay/internal/attachments"
	"modmail-relay/internal/formatter"
	relayredis "modmail-relay/internal/redis"
	"modmail-relay/internal/repository"
	"modmail-relay/internal/server"
	"modmail-relay/internal/services"
	"modmail-relay/internal/storage"
	"modmail-relay/internal/transport"
	"modmail-relay/internal/workers"
	"modmail-relay/pkg/database"
	"modmail-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	ctx := context.Background()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "release" || cfg.AppMode == "production" {
		mode = logger.ProductionMode
	}
	appLogger := logger.New(mode)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s3Client, err := storage.NewClient(ctx, storage.S3Config{
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Endpoint:   cfg.S3Endpoint,
		PublicBase: cfg.S3PublicBase,
	})
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})
	cache := relayredis.NewCacheStore(redisClient, relayredis.DefaultCacheConfig())

	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewThreadMessageRepository(db)

	chat := transport.NewRestClient(cfg.ChatAPIBaseURL, cfg.ChatBotToken)
	files := attachments.NewS3Relay(s3Client)

	threadService := services.NewThreadService(
		threadRepo,
		messageRepo,
		chat,
		files,
		formatter.NewDefault(),
		cache,
		appLogger,
		cfg.SmallAttachmentLimit,
	)

	scheduler := workers.DefaultScheduler(threadRepo, threadService, appLogger, cfg.SchedulerPollInterval)
	scheduler.Start(ctx)

	signer := server.NewTokenSigner(cfg.LogTokenSecret, cfg.LogTokenTTL)
	logServer := server.NewLogServer(threadRepo, messageRepo, signer, cfg.LogBaseURL)

	if cfg.AppMode == "release" || cfg.AppMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	logServer.Register(r)

	appLogger.Infof("Starting log server on port %s", cfg.AppPort)
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
