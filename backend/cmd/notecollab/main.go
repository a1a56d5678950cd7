package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"notecollab/backend/config"
	"notecollab/backend/internal/auth"
	"notecollab/backend/internal/cache"
	"notecollab/backend/internal/collab"
	"notecollab/backend/internal/httpapi/handlers"
	"notecollab/backend/internal/logging"
	"notecollab/backend/internal/store"
	"notecollab/backend/internal/ws"
)

var (
	buildVersion = "dev"
	buildCommit  = "local"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to init config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting notecollab",
		zap.String("version", buildVersion), zap.String("commit", buildCommit))

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is empty, set NOTECOLLAB_AUTH_JWT_SECRET")
	}

	// 单地址用单机客户端，多地址自动切换为集群客户端
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal("Failed to connect redis", zap.Error(err))
	}
	cancel()
	defer rdb.Close()

	db, err := store.InitMySQL(cfg.Mysql.DSN, cfg.Mysql.AutoMigrate)
	if err != nil {
		logger.Fatal("Failed to connect mysql", zap.Error(err))
	}
	noteStore := store.NewNoteStore(db)
	userStore := store.NewUserStore(db)

	guard := auth.NewGuard(cfg.Auth.JWTSecret, noteStore).WithMaxLifetime(cfg.Auth.TokenExpiry)
	contentCache := cache.NewRedisContent(rdb, cfg.Redis.TTL)
	hub := collab.NewHub(logger.Named("hub"))

	deps := collab.Deps{
		Guard:  guard,
		Store:  noteStore,
		Cache:  contentCache,
		Hub:    hub,
		Logger: logger.Named("gateway"),
		Options: collab.Options{
			MaxContentLength: cfg.Gateway.MaxContentLength,
			CallTimeout:      cfg.Gateway.CallTimeout,
			MaxInflight:      cfg.Gateway.MaxInflight,
			UserLeftScope:    cfg.Gateway.UserLeftScope,
		},
	}

	// 没有配置 broker 时不开启变更事件流
	var dispatcher *collab.KafkaDispatcher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			logger.Fatal("Failed to connect kafka", zap.Error(err))
		}
		defer producer.Close()

		dispatcher = collab.NewKafkaDispatcher(producer, cfg.Kafka.Topic,
			collab.NewSemaphoreControl(collab.DefaultMaxSemaphore),
			logger.Named("kafka"), collab.DefaultKafkaDispatcherOptions())
		defer dispatcher.Close()
		deps.Publisher = dispatcher
	}

	gw, err := collab.NewGateway(deps)
	if err != nil {
		logger.Fatal("Failed to build gateway", zap.Error(err))
	}
	manager := ws.NewManager(gw, cfg.Running.AllowedOrigins, logger.Named("ws"))
	noteHandlers := handlers.NewNoteHandlers(noteStore, userStore, contentCache, logger.Named("notes"))

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Running.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/ws", manager.WebSocketConnect)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	noteHandlers.Register(r.Group("/notes", auth.Middleware(guard)))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Running.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
