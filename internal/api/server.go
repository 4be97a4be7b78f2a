package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/gamebot/config"
	"example.com/backstage/services/gamebot/internal/api/handlers"
	"example.com/backstage/services/gamebot/internal/metrics"
	"example.com/backstage/services/gamebot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server is the ops HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	events     handlers.EventLister
	history    handlers.HistoryReader
	lifecycle  handlers.LifecycleSearcher
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
}

// NewServer creates the ops server. history and lifecycle may be nil when the
// journal or the search index is not configured.
func NewServer(cfg config.ServerConfig, events handlers.EventLister, history handlers.HistoryReader, lifecycle handlers.LifecycleSearcher, m *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.NoopTracer()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	server := &Server{
		config:    cfg,
		events:    events,
		history:   history,
		lifecycle: lifecycle,
		metrics:   m,
		tracer:    tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Timeout > 0 {
		server.httpServer.ReadTimeout = cfg.Timeout
		server.httpServer.WriteTimeout = cfg.Timeout
	}

	return server
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), requestMetrics(s.metrics))
	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	handlers.NewMetricsHandler(s.metrics, s.tracer).RegisterRoutes(router)
	handlers.NewEventsHandler(s.events, s.history, s.lifecycle, s.tracer).RegisterRoutes(router)

	return router
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}

// requestLogger logs every request with zerolog
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		evt := log.Debug()
		switch {
		case status >= 500:
			evt = log.Error()
		case status >= 400:
			evt = log.Warn()
		}
		evt.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("Request processed")
	}
}

// requestMetrics counts requests and server errors and times every request
func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		m.IncrementCounter(metrics.HTTPRequests)
		if c.Writer.Status() >= http.StatusInternalServerError {
			m.IncrementCounter(metrics.HTTPErrors)
		}
		m.RecordTimer(metrics.HTTPLatency, time.Since(start))
	}
}
