package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"camsignal/internal/core/ports"
	"camsignal/internal/core/services"
	httphandlers "camsignal/internal/handlers/http"
	"camsignal/internal/infrastructure/distributed"
	"camsignal/internal/infrastructure/monitoring"
	"camsignal/internal/infrastructure/repositories/memory"
	signaling "camsignal/internal/infrastructure/signal"
	"camsignal/pkg/config"
	"camsignal/pkg/logger"
	"camsignal/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/camsignal/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	var loadedFrom string

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			loadedFrom = path
			break
		}
	}

	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if loadedFrom != "" {
		log.Infow("configuration loaded", "path", loadedFrom)
	} else {
		log.Warnw("could not load configuration, using defaults", "error", err)
	}

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics ports.SignalMetrics = services.NopMetrics{}
	if cfg.Monitoring.PrometheusEnabled {
		metrics = monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	}

	health := monitoring.NewHealthChecker()

	// Presence mirror is optional; the coordinator never waits on it.
	var mirror ports.PresenceMirror
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = distributed.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatalw("failed to connect to Redis", "error", err)
		}
		redisMirror := distributed.NewRedisPresenceMirror(redisClient, cfg.Redis.PresenceChannel, uuid.NewString(), log)
		go redisMirror.Run(ctx)
		mirror = redisMirror
		health.AddRedisCheck(redisClient, cfg.Server.ReadTimeout)
	}

	wsServer := signaling.NewWebSocketServer(signaling.OptionsFromConfig(cfg), metrics, log)
	coordinator := services.NewCoordinator(
		memory.NewSessionRegistry(),
		wsServer,
		services.NewTableAuthorizer(cfg.Authorization.Table),
		mirror,
		metrics,
		log,
		cfg.Signal.EventQueueSize,
	)
	wsServer.SetSink(coordinator)
	health.AddCoordinatorCheck(coordinator, cfg.Server.ReadTimeout)

	coordinatorDone := make(chan struct{})
	go func() {
		defer close(coordinatorDone)
		coordinator.Run(ctx)
	}()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := newRouter(cfg, log, wsServer.HandleWebSocket,
		httphandlers.NewPageHandler(cfg.Server.StaticDir),
		httphandlers.NewStatusHandler(coordinator, wsServer, health, cfg.ICEServers()),
	)
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting camsignal server", "address", cfg.Server.Address)
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
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	// Sockets close first so their disconnect events reach a live coordinator.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error closing websocket connections", "error", err)
	}

	cancel()
	<-coordinatorDone

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorw("error closing Redis client", "error", err)
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("camsignal server stopped")
}
