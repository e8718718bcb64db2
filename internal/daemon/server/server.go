// Package server provides the local HTTP API of the booth daemon.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
)

// Network is the cached connectivity view.
type Network interface {
	Status() models.NetworkStatus
}

// Capturer runs one capture request.
type Capturer interface {
	Capture(ctx context.Context, req orchestrator.Request) models.CaptureResult
}

// Flusher runs a reconcile pass on demand.
type Flusher interface {
	Flush(ctx context.Context) (reconciler.Report, error)
}

// Settings holds the live configuration.
type Settings interface {
	Current() *config.Config
	Apply(cfg *config.Config)
}

// Deps are the daemon components the API exposes.
type Deps struct {
	Store    *store.Store
	Queue    *queue.Queue
	Network  Network
	Capturer Capturer
	Flusher  Flusher
	Settings Settings
	// Workers lists the running background workers, for /api/status.
	Workers []string
}

// RunningConfig is the effective configuration reported by /api/status so
// clients can verify what the daemon is actually using.
type RunningConfig struct {
	ConfigFile        string        `json:"config_file,omitempty"`
	SessionTimeout    time.Duration `json:"session_timeout"`
	MaxPhotos         int           `json:"max_photos"`
	PollInterval      time.Duration `json:"poll_interval"`
	ReconcileInterval time.Duration `json:"reconcile_interval"`
	BatchSize         int           `json:"batch_size"`
	QueueBackend      string        `json:"queue_backend"`
	QueuePath         string        `json:"queue_path"`
	UploadEndpoint    string        `json:"upload_endpoint,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
}

// NewRunningConfig summarizes cfg.
func NewRunningConfig(cfg *config.Config, startedAt time.Time) *RunningConfig {
	return &RunningConfig{
		ConfigFile:        cfg.Path(),
		SessionTimeout:    cfg.Session.Timeout.D(),
		MaxPhotos:         cfg.Session.MaxPhotos,
		PollInterval:      cfg.Network.PollInterval.D(),
		ReconcileInterval: cfg.Reconciler.Interval.D(),
		BatchSize:         cfg.Reconciler.BatchSize,
		QueueBackend:      cfg.Queue.Backend,
		QueuePath:         cfg.Queue.Path,
		UploadEndpoint:    cfg.Upload.Endpoint,
		StartedAt:         startedAt,
	}
}

// Server manages the daemon's HTTP API on a Unix socket and, optionally, a
// TCP address for the browser-based kiosk UI.
type Server struct {
	deps      Deps
	logger    *logrus.Entry
	startedAt time.Time
	router    *gin.Engine

	mu      sync.Mutex
	servers []*http.Server
}

// New creates a new Server instance.
func New(deps Deps, logger *logrus.Entry) *Server {
	s := &Server{
		deps:      deps,
		logger:    logger,
		startedAt: time.Now(),
	}
	s.router = s.newRouter()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(cors.New(corsConfig(s.origins())))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/network", s.handleNetwork)
		api.GET("/sessions", s.handleListSessions)
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id/qr", s.handleQR)
		api.POST("/capture", s.handleCapture)
		api.GET("/queue", s.handleQueue)
		api.POST("/queue/flush", s.handleFlush)
		api.POST("/settings", s.handleSettings)
		api.GET("/stream", s.handleStream)
	}
	return r
}

func (s *Server) origins() []string {
	if s.deps.Settings == nil {
		return nil
	}
	return s.deps.Settings.Current().Server.CORSOrigins
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("Request handled")
	}
}

// ListenAndServe serves the API on socketPath and, when addr is not empty,
// on that TCP address as well. It blocks until a listener stops or fails.
func (s *Server) ListenAndServe(socketPath, addr string) error {
	unixListener, err := listenUnix(socketPath)
	if err != nil {
		return err
	}

	listeners := []net.Listener{unixListener}
	if addr != "" {
		tcpListener, err := net.Listen("tcp", addr)
		if err != nil {
			_ = unixListener.Close()
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		listeners = append(listeners, tcpListener)
	}

	errCh := make(chan error, len(listeners))
	s.mu.Lock()
	for _, l := range listeners {
		srv := &http.Server{
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.servers = append(s.servers, srv)
		go func(srv *http.Server, l net.Listener) {
			errCh <- srv.Serve(l)
		}(srv, l)
		s.logger.WithField("address", l.Addr().String()).Info("Daemon listening")
	}
	s.mu.Unlock()

	return <-errCh
}

// listenUnix opens the daemon socket, replacing a stale one.
func listenUnix(socketPath string) (net.Listener, error) {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// Shutdown gracefully stops every listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
