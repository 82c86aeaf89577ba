package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"battle-service/config"
	"battle-service/internal/handlers"
	"battle-service/internal/quiz"
	"battle-service/internal/reward"
	"battle-service/internal/store"
	ws "battle-service/internal/websocket"
	"battle-service/pkg/cache"
	"battle-service/pkg/database"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	pgClient, err := database.NewPostgresClient(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgClient.InitSchema(ctx); err != nil {
		log.Printf("Warning: Failed to initialize PostgreSQL schema: %v", err)
	} else {
		log.Println("PostgreSQL schema initialized")
	}
	cancel()

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		redisClient = nil
	} else {
		log.Println("Connected to Redis")
		defer redisClient.Close()
	}

	var rewardPublisher reward.Publisher
	rabbitPublisher, err := reward.NewRabbitMQPublisher(&cfg.RabbitMQ)
	if err != nil {
		log.Printf("Warning: Failed to connect to RabbitMQ, rewards disabled: %v", err)
	} else {
		log.Println("Connected to RabbitMQ")
		defer rabbitPublisher.Close()
		rewardPublisher = rabbitPublisher
	}

	supplier := quiz.NewCachedSupplier(quiz.NewRepository(pgClient.GetDB()), redisClient)

	roomStore := store.NewMemoryStore()

	hub := ws.NewHub(roomStore, supplier, rewardPublisher, cfg.Battle.QuizCount)
	go hub.Run()
	defer hub.Stop()
	log.Println("WebSocket hub started")

	sweeper := store.NewSweeper(roomStore, cfg.Battle.RoomRetention, cfg.Battle.SweepInterval, hub.RoomLock, hub.ReleaseRoom)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start expiry sweeper: %v", err)
	}
	defer sweeper.Stop()
	log.Println("Expiry sweeper started")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "battle-service",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if pgClient == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	roomHandler := handlers.NewRoomHandler(roomStore, cfg)
	router.POST("/rooms", roomHandler.CreateRoom)
	router.GET("/rooms/:id", roomHandler.GetRoom)

	wsHandler := handlers.NewWebSocketHandler(hub, cfg)
	router.GET("/ws", wsHandler.HandleWebSocket)

	httpAddr := ":" + cfg.Server.HTTPPort
	log.Printf("Battle Service HTTP server starting on port %s...", cfg.Server.HTTPPort)

	go func() {
		if err := router.Run(httpAddr); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Battle service stopped")
}
