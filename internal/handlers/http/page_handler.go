package http

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the bundled browser client.
type PageHandler struct {
	staticDir string
}

func NewPageHandler(staticDir string) *PageHandler {
	return &PageHandler{staticDir: staticDir}
}

func (h *PageHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/", h.Index)
}

func (h *PageHandler) Index(c *gin.Context) {
	path := filepath.Join(h.staticDir, "index.html")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "client page not found"})
		return
	}
	c.File(path)
}
