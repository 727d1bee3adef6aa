// Package server exposes the coordinator's message contract over HTTP.
//
// POST /api/message takes the same {"action": ...} envelopes an in-process
// caller would dispatch; the REST routes are conveniences over the same
// actions.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/coordinator"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/metrics"
	"github.com/minios-linux/glosa/translate"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const (
	defaultAddr       = "127.0.0.1:8787"
	maxBodyBytes      = 1 << 20
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Addr string
	// RateLimit is the sustained request rate per second on /api; zero
	// disables limiting.
	RateLimit float64
	Burst     int
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of a coordinator.
type Server struct {
	coord  *coordinator.Coordinator
	opts   Options
	engine *gin.Engine
}

// New builds the router. Call Run to serve it.
func New(coord *coordinator.Coordinator, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	s := &Server{coord: coord, opts: opts}
	s.engine = s.routes()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on http://%s", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", s.health)
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(limitBody())
	if s.opts.RateLimit > 0 {
		api.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), max(s.opts.Burst, 1)), s.opts.Metrics))
	}
	api.POST("/message", s.message)
	api.GET("/config", s.getConfig)
	api.PUT("/config", s.updateConfig)
	api.POST("/config/reset", s.resetConfig)
	api.POST("/config/reload", s.reloadConfig)
	api.POST("/translate", s.translate)
	api.GET("/status", s.backendStatus)
	api.GET("/models/:id/status", s.modelStatus)
	api.POST("/backend/:name", s.switchBackend)
	return r
}

func (s *Server) health(c *gin.Context) {
	state, err := s.coord.State()
	body := gin.H{"state": state}
	if err != nil {
		body["error"] = translate.UserMessage(err)
	}
	c.JSON(http.StatusOK, body)
}

// message dispatches one envelope. Every well-formed envelope gets 200 and
// a response record, failures included.
func (s *Server) message(c *gin.Context) {
	var m coordinator.Message
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, coordinator.AckResponse{Error: i18n.T("Request body must be a JSON object")})
		return
	}
	c.JSON(http.StatusOK, s.coord.Dispatch(c.Request.Context(), m))
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.GetConfig(c.Request.Context()))
}

func (s *Server) updateConfig(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, coordinator.AckResponse{Error: i18n.T("Request body could not be read")})
		return
	}
	cfg, err := config.Parse(data, config.Default())
	if err != nil {
		c.JSON(http.StatusBadRequest, coordinator.AckResponse{Error: i18n.Tf("Configuration rejected: %s", translate.Truncate(err.Error(), 300))})
		return
	}
	c.JSON(http.StatusOK, s.coord.UpdateConfig(c.Request.Context(), cfg))
}

func (s *Server) resetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.ResetConfig(c.Request.Context()))
}

func (s *Server) reloadConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.ReloadConfig(c.Request.Context()))
}

func (s *Server) translate(c *gin.Context) {
	var req translate.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, coordinator.TranslateResponse{
			Error:     i18n.T("Request body must be a JSON object"),
			ErrorKind: string(translate.KindInvalidRequest),
		})
		return
	}
	c.JSON(http.StatusOK, s.coord.Translate(c.Request.Context(), req))
}

func (s *Server) backendStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.CheckBackendStatus(c.Request.Context()))
}

func (s *Server) modelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.CheckModelStatus(c.Request.Context(), c.Param("id")))
}

func (s *Server) switchBackend(c *gin.Context) {
	c.JSON(http.StatusOK, s.coord.SwitchBackend(c.Request.Context(), c.Param("name")))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// requestID tags the request context with the caller's X-Request-ID or a
// fresh one, and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.WithRequestID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, logging.RequestID(ctx))
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.FromContext(c.Request.Context()).WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond).String(),
		}).Debugf("%s %s", c.Request.Method, c.FullPath())
	}
}

func rateLimit(l *rate.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			m.ObserveRateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, coordinator.AckResponse{Error: i18n.T("Too many requests")})
			return
		}
		c.Next()
	}
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}
