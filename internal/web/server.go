// Package web serves tracking pages, the visit JSON API and the health endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/feature/visit"
	"github.com/jitterskin/logger/internal/logging"
)

const (
	pingTimeout       = 2 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Recorder stores visits.
type Recorder interface {
	Record(ctx context.Context, v visit.Visit) (bool, error)
}

// StatsSource resolves public tokens and their visit statistics.
type StatsSource interface {
	Lookup(ctx context.Context, token string) (domain.Logger, error)
	Stats(ctx context.Context, id int64) (domain.LoggerStats, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the gin engine and owns the underlying HTTP server.
type Server struct {
	server   *http.Server
	engine   *gin.Engine
	recorder Recorder
	stats    StatsSource
	db       Pinger
	logger   *logrus.Entry
	now      func() time.Time
}

// NewServer builds the HTTP surface on the given port.
func NewServer(port int, recorder Recorder, stats StatsSource, db Pinger, release bool, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		recorder: recorder,
		stats:    stats,
		db:       db,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	// tracking links are usually served behind a reverse proxy; the first
	// X-Forwarded-For hop is the visitor
	if err := engine.SetTrustedProxies([]string{"0.0.0.0/0", "::/0"}); err != nil {
		logger.WithField("event", "http_proxy_config").WithError(err).Warn("failed to set trusted proxies")
	}

	engine.GET("/", s.handleIndex)
	engine.GET("/logger/:token", s.handleLoggerPage)
	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	{
		api.POST("/log", s.handleLogVisit)
		api.GET("/stats/:token", s.handleStats)
	}

	s.engine = engine
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logging.Fields{
			"event":       "http_request",
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("http request served")
	}
}
