package http

import (
	"context"
	"net/http"
	"time"

	"camsignal/internal/core/ports"
	"camsignal/internal/infrastructure/monitoring"
	apperrors "camsignal/pkg/errors"

	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"
)

const queryTimeout = 2 * time.Second

// ConnectionCounter reports live transport connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatusHandler serves the read-only JSON surface: presence, ICE servers,
// liveness and readiness.
type StatusHandler struct {
	presence    ports.PresenceReader
	connections ConnectionCounter
	health      *monitoring.HealthChecker
	iceServers  []webrtc.ICEServer
	startTime   time.Time
}

func NewStatusHandler(
	presence ports.PresenceReader,
	connections ConnectionCounter,
	health *monitoring.HealthChecker,
	iceServers []webrtc.ICEServer,
) *StatusHandler {
	return &StatusHandler{
		presence:    presence,
		connections: connections,
		health:      health,
		iceServers:  iceServers,
		startTime:   time.Now(),
	}
}

func (h *StatusHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	api := router.Group("/api/v1")
	{
		api.GET("/cameras", h.ListCameras)
		api.GET("/ice-servers", h.ListICEServers)
	}
}

func (h *StatusHandler) ListCameras(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	cameras, err := h.presence.Cameras(ctx)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeServiceUnavailable,
			"presence unavailable", http.StatusServiceUnavailable))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

func (h *StatusHandler) ListICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers": h.iceServers,
	})
}

func (h *StatusHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	stats, err := h.presence.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"timestamp": time.Now(),
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"uptime":       time.Since(h.startTime).String(),
		"sockets":      h.connections.ConnectionCount(),
		"connections":  stats.Connections,
		"broadcasters": stats.Broadcasters,
		"viewers":      stats.Viewers,
	})
}

func (h *StatusHandler) Ready(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	state := "ready"
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(code, gin.H{
		"status":    state,
		"timestamp": status.Timestamp,
		"checks":    status.Checks,
	})
}
