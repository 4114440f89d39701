package container

import (
	"context"
	"fmt"
	"log"

	"gocausal/adapters/causalapi"
	"gocausal/adapters/excel"
	"gocausal/adapters/postgres"
	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/api"
	"gocausal/internal/config"
	"gocausal/internal/editor"
	"gocausal/internal/session"
	"gocausal/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories and external services
	GraphRepo  ports.GraphRepository
	Attributes ports.AttributeSource
	Estimator  ports.CausalEstimator

	// Editor components
	Sessions   *editor.SessionManager
	Estimation *app.EstimationService
	SSEHub     *api.SSEHub
	Notifier   *api.SSENotifier
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
	}

	return c, nil
}

// Init wires every component. db may be nil, in which case graphs are kept
// as JSON files under Data.GraphDir.
func (c *Container) Init(ctx context.Context, db *sqlx.DB) error {
	if err := c.initRepositories(db); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := c.initEstimator(); err != nil {
		return fmt.Errorf("failed to initialize causal API client: %w", err)
	}

	c.SSEHub = api.NewSSEHub()
	c.Notifier = api.NewSSENotifier(c.SSEHub)
	c.Estimation = app.NewEstimationService(c.Estimator, c.Notifier)

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load attribute catalog: %w", err)
	}

	c.Sessions = editor.NewSessionManager(editor.CanvasOptions{
		CellSize:      c.Config.Editor.GridSize,
		SnapThreshold: c.Config.Editor.SnapThreshold,
		Attributes:    catalog,
	}, c.saveGraph)

	log.Printf("Container initialized: %d attributes, database=%t", len(catalog), c.DB != nil)
	return nil
}

// initRepositories picks postgres when a connection is given, the local
// graph store otherwise
func (c *Container) initRepositories(db *sqlx.DB) error {
	if db != nil {
		if err := db.Ping(); err != nil {
			return fmt.Errorf("database connection test failed: %w", err)
		}
		c.DB = db
		c.GraphRepo = postgres.NewGraphRepository(db)
		return nil
	}

	blobs, err := session.NewLocalBlobStore(c.Config.Data.GraphDir)
	if err != nil {
		return err
	}
	c.GraphRepo = session.NewGraphStore(blobs)
	log.Printf("No database configured, saving graphs under %s", c.Config.Data.GraphDir)
	return nil
}

func (c *Container) initEstimator() error {
	client, err := causalapi.NewClient(causalapi.Config{
		BaseURL: c.Config.CausalAPI.BaseURL,
		Token:   c.Config.CausalAPI.Token,
		Timeout: c.Config.CausalAPI.Timeout,
	})
	if err != nil {
		return err
	}
	c.Estimator = client
	return nil
}

// loadCatalog reads the dataset header. Without a dataset any attribute
// name may be dropped.
func (c *Container) loadCatalog(ctx context.Context) ([]string, error) {
	if c.Config.Data.DatasetFile == "" {
		log.Printf("No dataset configured, attribute catalog is open")
		return nil, nil
	}
	reader := excel.NewDataReader(c.Config.Data.DatasetFile)
	c.Attributes = reader
	return reader.Attributes(ctx)
}

func (c *Container) saveGraph(ctx context.Context, id core.SessionID, nodes []causal.Node, edges []causal.Edge) error {
	return c.GraphRepo.Save(ctx, id, nodes, edges)
}

// OpenSaved restores a previously saved graph into a new editor session
// with the same id.
func (c *Container) OpenSaved(ctx context.Context, id core.SessionID) (*editor.Session, error) {
	nodes, edges, err := c.GraphRepo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Sessions.Restore(id, nodes, edges)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Sessions != nil {
		for _, id := range c.Sessions.List() {
			if err := c.Sessions.Close(ctx, id); err != nil {
				log.Printf("Warning: failed to save session %s on shutdown: %v", id, err)
			}
		}
	}

	if c.Estimation != nil {
		c.Estimation.Wait()
	}

	if c.SSEHub != nil {
		c.SSEHub.Stop()
	}

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
