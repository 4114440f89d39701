package ui

import (
	"log"
	"time"

	"gocausal/ui/middleware"

	"github.com/gin-gonic/gin"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())
}

// loadSession resolves :id for the per-session routes
func (s *Server) loadSession() gin.HandlerFunc {
	return middleware.LoadSession(s.sessions)
}

// requestLogger logs one line per API request. The SSE stream is skipped
// since it stays open for the lifetime of the page.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/events/:id" {
			return
		}
		log.Printf("[HTTP] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
