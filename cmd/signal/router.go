package main

import (
	"fmt"
	"net/http"

	"camsignal/internal/infrastructure/middleware"
	"camsignal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type routeRegistrar interface {
	SetupRoutes(router gin.IRouter)
}

// newRouter builds the HTTP surface. /ws sits outside the request limiter:
// a socket holds its handler for the whole connection and would otherwise pin
// one of the limiter's concurrency slots.
func newRouter(cfg *config.Config, log *zap.SugaredLogger, ws http.HandlerFunc, routes ...routeRegistrar) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.RecoveryMiddleware(log),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
	)

	router.GET("/ws",
		middleware.NewWebSocketConnectLimitMiddleware(cfg),
		gin.WrapF(ws),
	)

	limited := router.Group("", middleware.NewHTTPRateLimitMiddleware(cfg))
	for _, r := range routes {
		r.SetupRoutes(limited)
	}

	if cfg.Monitoring.PrometheusEnabled {
		limited.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	return router, nil
}
