package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"camsignal/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type healthRoute struct{}

func (healthRoute) SetupRoutes(router gin.IRouter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func limitedConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Monitoring.PrometheusEnabled = false
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1000
	cfg.RateLimiting.HTTP.Burst = 1000
	cfg.RateLimiting.HTTP.MaxConcurrent = 1
	return cfg
}

func TestNewRouter_OpenSocketDoesNotStarveHTTPRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	started := make(chan struct{})
	release := make(chan struct{})
	ws := func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusNoContent)
	}

	router, err := newRouter(limitedConfig(), zap.NewNop().Sugar(), ws, healthRoute{})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsDone := make(chan int, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/ws")
		if err != nil {
			wsDone <- 0
			return
		}
		resp.Body.Close()
		wsDone <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("/ws handler never started")
	}

	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	close(release)
	select {
	case code := <-wsDone:
		assert.Equal(t, http.StatusNoContent, code)
	case <-time.After(2 * time.Second):
		t.Fatal("/ws handler did not return")
	}
}

func TestNewRouter_HTTPRoutesStillCapped(t *testing.T) {
	gin.SetMode(gin.TestMode)

	started := make(chan struct{})
	release := make(chan struct{})
	slow := routeFunc(func(router gin.IRouter) {
		router.GET("/slow", func(c *gin.Context) {
			close(started)
			<-release
			c.Status(http.StatusOK)
		})
	})

	router, err := newRouter(limitedConfig(), zap.NewNop().Sugar(), http.NotFound, slow, healthRoute{})
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	defer srv.Close()

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		if resp, err := http.Get(srv.URL + "/slow"); err == nil {
			resp.Body.Close()
		}
	}()
	<-started

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	close(release)
	<-slowDone
}

func TestNewRouter_RejectsMalformedTrustedProxy(t *testing.T) {
	cfg := limitedConfig()
	cfg.Server.TrustedProxies = []string{"not-an-ip"}

	_, err := newRouter(cfg, zap.NewNop().Sugar(), http.NotFound)
	assert.Error(t, err)
}

type routeFunc func(router gin.IRouter)

func (f routeFunc) SetupRoutes(router gin.IRouter) { f(router) }
