package bootstrap

import (
	"context"
	"log"
	"time"

	"ecoagent-be/internal/config"
	"ecoagent-be/internal/controller"
	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/internal/repository/memory"
	"ecoagent-be/internal/service"
	"ecoagent-be/internal/websocket"
	"ecoagent-be/pkg/analysis"
	"ecoagent-be/pkg/conversation"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService IConsumer

	// Core pieces exposed for graceful shutdown
	Orchestrator *conversation.Orchestrator
	WebSocketHub *websocket.Hub
}

// IConsumer mirrors service.IConsumerService without re-exporting it.
type IConsumer interface {
	Consume(ctx context.Context) error
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Analysis backend client
	analysisClient := analysis.NewHTTPClient(
		cfg.Analysis.BaseURL,
		time.Duration(cfg.Analysis.TimeoutSeconds)*time.Second,
	)
	log.Printf("[INFO] Using analysis backend: %s", cfg.Analysis.BaseURL)

	// In-memory session storage
	sessionRepo := memory.NewSessionRepository(time.Duration(cfg.Chat.SessionTTLMinutes) * time.Minute)

	// Redis (optional, for multi-instance websocket fan-out)
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb = redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Running single-instance", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/events.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	publisherService := service.NewPublisherService(cfg.Chat.EventsTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Chat.EventsTopic, wsHub)

	notifier := service.NewConversationNotifier(publisherService, sysLogger)

	orchestrator := conversation.NewOrchestrator(analysisClient, notifier, sysLogger)
	orchestrator.ConfidenceFloor = cfg.Chat.ConfidenceFloor
	orchestrator.MaxReasks = cfg.Chat.MaxReasks

	chatService := service.NewChatService(analysisClient, sessionRepo, orchestrator, sysLogger)

	return &Container{
		ChatController:  controller.NewChatController(chatService, wsHub, sysLogger),
		ConsumerService: consumerService,
		Orchestrator:    orchestrator,
		WebSocketHub:    wsHub,
	}
}
