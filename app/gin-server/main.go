package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dallosh/livedesk/config"
	"github.com/dallosh/livedesk/internal/api/handlers"
	"github.com/dallosh/livedesk/internal/api/middleware"
	"github.com/dallosh/livedesk/internal/api/routes"
	"github.com/dallosh/livedesk/internal/cache"
	"github.com/dallosh/livedesk/internal/logger"
	"github.com/dallosh/livedesk/internal/models"
	"github.com/dallosh/livedesk/internal/realtime"
	mongorepo "github.com/dallosh/livedesk/internal/repositories/mongo"
	pgrepo "github.com/dallosh/livedesk/internal/repositories/postgres"
	"github.com/dallosh/livedesk/internal/services"
	"github.com/dallosh/livedesk/internal/storage"
	"github.com/dallosh/livedesk/internal/voice"
	"github.com/dallosh/livedesk/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()

	// Init MongoDB (live store)
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	fmt.Println("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("Mongo index error: %v", err)
	}

	// Init PostgreSQL (transcript archive)
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	fmt.Println("PostgreSQL connected")

	if err := config.PostgresDB.AutoMigrate(&models.TranscriptLog{}); err != nil {
		l.WithError(err).Warn("transcript archive migrate failed")
	}

	// Init Redis (notifier, streams, cache)
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	fmt.Println("Redis connected")

	db := config.MongoDatabase()
	rdb := config.RedisClient

	sessionRepo := mongorepo.NewSessionRepo(db)
	messageRepo := mongorepo.NewMessageRepo(db)
	requestRepo := mongorepo.NewRequestRepo(db)
	settingsRepo := mongorepo.NewSettingsRepo(db)
	archiveRepo := pgrepo.NewArchiveRepo(config.PostgresDB)

	notifier := realtime.NewRedisNotifier(rdb)
	redisCache := cache.NewRedisCache(rdb)

	chatSvc := services.NewChatService(sessionRepo, messageRepo, requestRepo, notifier, l)
	requestSvc := services.NewRequestService(requestRepo, notifier, l)
	archiveSvc := services.NewArchiveService(archiveRepo, l)
	settingsSvc := services.NewSettingsService(settingsRepo, redisCache, l)

	escalator := &workers.StreamEscalator{Redis: rdb}

	// Escalation worker pool (stream -> support requests)
	pool := &workers.EscalationWorkerPool{
		Redis:    rdb,
		Requests: requestSvc,
		Logger:   l,
	}
	if err := pool.Start(context.Background()); err != nil {
		log.Fatalf("escalation worker init error: %v", err)
	}

	voiceCfg := voice.Config{
		AgentBaseURL: os.Getenv("AGENT_WS_URL"),
		AgentType:    os.Getenv("AGENT_TYPE"),
	}
	if v := os.Getenv("PRESENCE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			voiceCfg.PresenceInterval = d
		}
	}
	if v := os.Getenv("BOT_FLUSH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			voiceCfg.BotFlushTimeout = d
		}
	}

	var uploader storage.Uploader
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		up, err := storage.NewGCSUploader(context.Background(), bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		defer up.Close()
		uploader = up
	}

	registry := voice.NewRegistry()

	deps := routes.Deps{
		Session:    handlers.NewSessionHandler(chatSvc),
		Message:    handlers.NewMessageHandler(chatSvc, archiveSvc),
		Request:    handlers.NewRequestHandler(requestSvc),
		Attachment: handlers.NewAttachmentHandler(uploader),
		WS:         handlers.NewWSHandler(chatSvc, settingsSvc, archiveSvc, escalator, notifier, registry, rdb, voiceCfg, l),
	}

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))
	routes.RegisterRoutes(r, deps)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
