package http

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hydrogem/pool-dashboard/services/api/analysis"
	"github.com/hydrogem/pool-dashboard/services/api/config"
	"github.com/hydrogem/pool-dashboard/services/api/live"
	"github.com/hydrogem/pool-dashboard/services/api/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ReadingStore is the latest-row query used by the page and live views.
type ReadingStore interface {
	LatestReading(ctx context.Context) (*models.Reading, error)
}

// Analyzer runs one analysis over a window of hours.
type Analyzer interface {
	Analyze(ctx context.Context, hours float64) (analysis.Result, error)
}

// Server bundles router and dependencies for the dashboard API.
type Server struct {
	cfg      config.Config
	store    ReadingStore
	feed     live.Subscriber
	analyzer Analyzer
	engine   *gin.Engine

	views sync.Map // session id -> *live.View

	streamsDone chan struct{} // closed when the server starts shutting down
	stopOnce    sync.Once
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store ReadingStore, feed live.Subscriber, analyzer Analyzer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(requestIDMiddleware())
	engine.Use(corsMiddleware())

	engine.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	server := &Server{
		cfg:         cfg,
		store:       store,
		feed:        feed,
		analyzer:    analyzer,
		engine:      engine,
		streamsDone: make(chan struct{}),
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}
	// Shutdown waits for active handlers; live streams never finish on
	// their own.
	srv.RegisterOnShutdown(s.stopStreams)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) stopStreams() {
	s.stopOnce.Do(func() { close(s.streamsDone) })
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.GET("/", s.handlePage)

	api := s.engine.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/readings/latest", s.handleLatest)
		api.GET("/live", s.handleLive)
		api.POST("/live/:id/refresh", s.handleLiveRefresh)
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
