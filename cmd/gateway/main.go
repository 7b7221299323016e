package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"owlet/internal/core/services"
	httphandlers "owlet/internal/handlers/http"
	"owlet/internal/infrastructure/middleware"
	"owlet/internal/infrastructure/monitoring"
	"owlet/internal/infrastructure/presence"
	"owlet/internal/infrastructure/repositories"
	"owlet/internal/infrastructure/socket"
	"owlet/pkg/config"
	"owlet/pkg/logger"
	"owlet/pkg/snowflake"
	"owlet/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/owlet/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx := context.Background()
	repos, err := repositories.NewSet(ctx, cfg, zapLogger)
	if err != nil {
		log.Fatalw("failed to initialize repositories", "error", err)
	}
	defer repos.Close()

	workerID := cfg.Snowflake.WorkerID
	if workerID < 0 {
		workerID = rand.Int63n(1024)
		log.Infow("picked random snowflake worker id", "worker_id", workerID)
	}
	node, err := snowflake.NewNode(workerID)
	if err != nil {
		log.Fatalw("failed to initialize id generator", "error", err)
	}

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
	}

	// Presence shards and the fan-out coordinator.
	shards := presence.NewShards()
	coordinator := presence.NewCoordinator(shards, cfg.Presence.QueryTimeout, collector, log)

	// Channel session registry; the write paths broadcast through it.
	registry := socket.NewRegistry(cfg.Socket.WriteTimeout, collector, log)

	permService := services.NewPermissionService(repos.Servers, repos.Channels, repos.Members, repos.Overrides)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, repos.Users)
	serverService := services.NewServerService(repos.Servers, repos.Members, repos.Roles, repos.Invites, repos.Bans,
		permService, node, coordinator, log)
	channelService := services.NewChannelService(repos.Channels, repos.Roles, repos.Overrides, permService, node)
	roleService := services.NewRoleService(repos.Roles, permService, node)
	messageService := services.NewMessageService(repos.Messages, repos.Channels, repos.Users, permService, node, registry, log)
	friendService := services.NewFriendService(repos.Friends, repos.Users, coordinator, log)

	socketHandler := socket.NewHandler(registry, repos.Channels, permService, cfg, collector, log)
	presenceHandler := presence.NewHandler(shards, cfg, collector, log)

	health := monitoring.NewHealthChecker(cfg.Database.ConnectTimeout)
	health.Register("store", repos.Ping)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.RequestLoggerMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	router.GET("/health", health.LiveHandler)
	router.GET("/ready", health.ReadyHandler)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(authService))
	api.Use(middleware.RateLimitMiddleware(cfg, rdb, log))
	{
		httphandlers.NewAuthHandler(authService).SetupRoutes(api)
		httphandlers.NewServerHandler(serverService).SetupRoutes(api)
		httphandlers.NewChannelHandler(channelService).SetupRoutes(api)
		httphandlers.NewRoleHandler(roleService).SetupRoutes(api)
		httphandlers.NewMessageHandler(messageService).SetupRoutes(api)
		httphandlers.NewFriendHandler(friendService).SetupRoutes(api)

		api.GET("/channels/:channelID/ws", socketHandler.HandleChannelSocket)
		api.GET("/presence/ws", presenceHandler.HandlePresenceSocket)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("gateway listening", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("tracer shutdown failed", "error", err)
	}
	log.Info("gateway stopped")
}
