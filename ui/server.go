package ui

import (
	"context"
	"log"
	"net/http"
	"time"

	"gocausal/app"
	"gocausal/internal/api"
	"gocausal/internal/container"
	"gocausal/internal/editor"
	"gocausal/ports"

	"github.com/gin-gonic/gin"
)

// Server is the editor HTTP API
type Server struct {
	router     *gin.Engine
	sessions   *editor.SessionManager
	estimation *app.EstimationService
	sseHub     *api.SSEHub
	notifier   *api.SSENotifier
	attributes ports.AttributeSource
	openSaved  func(ctx context.Context, id string) (*editor.Session, error)

	httpServer *http.Server
}

// NewServer builds the API on top of an initialized container
func NewServer(c *container.Container) *Server {
	s := &Server{
		router:     gin.New(),
		sessions:   c.Sessions,
		estimation: c.Estimation,
		sseHub:     c.SSEHub,
		notifier:   c.Notifier,
		attributes: c.Attributes,
	}
	if c.GraphRepo != nil {
		s.openSaved = func(ctx context.Context, id string) (*editor.Session, error) {
			sid, err := parseSessionID(id)
			if err != nil {
				return nil, err
			}
			return c.OpenSaved(ctx, sid)
		}
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              ":" + c.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/events/:id", s.sseHub.HandleSSE)

	apiGroup := s.router.Group("/api")
	apiGroup.GET("/attributes", s.handleAttributes)
	apiGroup.POST("/sessions", s.handleCreateSession)
	apiGroup.GET("/sessions", s.handleListSessions)

	sess := apiGroup.Group("/sessions/:id", s.loadSession())
	sess.GET("/scene", s.handleScene)
	sess.GET("/svg", s.handleSVG)
	sess.POST("/events", s.handleEvent)
	sess.POST("/estimate/:kind", s.handleEstimate)
	sess.PUT("/nodes/:node/treatment", s.handleSetTreatment)
	sess.PUT("/nodes/:node/model", s.handleSetModel)
	sess.POST("/latents/:node/resolve", s.handleResolveLatent)
	sess.POST("/edges/:index/reverse", s.handleReverseEdge)
	sess.GET("/models", s.handleModels)
	sess.GET("/models/:model/options", s.handleModelOptions)
	sess.GET("/report", s.handleReport)
	sess.POST("/exit", s.handleExit)
}

// Start serves the API on the configured port until Shutdown is called
func (s *Server) Start() error {
	log.Printf("[Server] Editor API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
