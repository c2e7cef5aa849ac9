// Package static serves the embedded demo page. Production embedders host
// the widget themselves; the demo exists so a bare server is usable.
package static

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	pathpkg "path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virek/vroom/internal/config"
)

const (
	demoDir        = "demo"
	apiPlaceholder = "window.VROOM_API=\"http://localhost:8080\""
)

//go:embed all:demo
var demoFiles embed.FS

// RegisterDemoRoutes wires the demo page as the fallback for everything
// outside /api and /ws.
func RegisterDemoRoutes(router *gin.Engine, cfg *config.Config) {
	// Gin can't combine a root catch-all with other top-level routes, so
	// the demo hangs off NoRoute.
	router.NoRoute(demoHandler(cfg))
}

func demoHandler(cfg *config.Config) gin.HandlerFunc {
	demoFS, err := fs.Sub(demoFiles, demoDir)
	if err != nil {
		return func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "demo page missing")
		}
	}

	fileServer := http.FileServer(http.FS(demoFS))

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") || strings.HasPrefix(c.Request.URL.Path, "/ws") {
			c.Status(http.StatusNotFound)
			return
		}

		requestPath := strings.TrimPrefix(c.Request.URL.Path, "/")
		if requestPath == "" || requestPath == "index.html" {
			serveIndex(c, demoFS, cfg)
			return
		}

		cleaned := pathpkg.Clean("/" + requestPath)
		if strings.HasPrefix(cleaned, "/..") {
			c.Status(http.StatusNotFound)
			return
		}
		requestPath = strings.TrimPrefix(cleaned, "/")
		if requestPath == "" {
			serveIndex(c, demoFS, cfg)
			return
		}

		info, err := fs.Stat(demoFS, requestPath)
		if err != nil || info.IsDir() {
			// Meeting links like /meeting/<id> resolve to the same page.
			serveIndex(c, demoFS, cfg)
			return
		}

		c.Request.URL.Path = "/" + requestPath
		fileServer.ServeHTTP(c.Writer, c.Request)
		c.Abort()
	}
}

func serveIndex(c *gin.Context, demoFS fs.FS, cfg *config.Config) {
	indexFile, err := demoFS.Open("index.html")
	if err != nil {
		c.String(http.StatusServiceUnavailable, "demo entrypoint not found")
		return
	}
	defer indexFile.Close()

	content, err := io.ReadAll(indexFile)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to read demo entrypoint")
		return
	}

	html := strings.Replace(string(content), apiPlaceholder, fmt.Sprintf("window.VROOM_API=%q", apiAddress(cfg)), 1)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.String(http.StatusOK, html)
}

// apiAddress picks the base URL the demo page calls. Empty means
// same-origin.
func apiAddress(cfg *config.Config) string {
	if cfg.HTTPOnly && cfg.ClientURL != "" {
		return cfg.ClientURL
	}
	return ""
}
