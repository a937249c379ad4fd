package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/khmercoders/kcbot/internal/conf"
	"github.com/khmercoders/kcbot/internal/infra/telegram"
	"github.com/khmercoders/kcbot/internal/pkg/logger"
)

const (
	// RequestIDHeader carries the request id in and out
	RequestIDHeader = "X-Request-ID"
	// SecretTokenHeader is set by Telegram to the secret given to setWebhook
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	requestIDKey    = "request_id"
	maxUpdateBytes  = 1 << 20
	shutdownTimeout = 30 * time.Second
)

// UpdateHandler processes one decoded webhook update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *telegram.Update)
}

// HTTPServer receives Telegram webhook deliveries
type HTTPServer struct {
	engine *gin.Engine
	srv    *http.Server
	secret string
	bot    UpdateHandler
	logger *slog.Logger
}

// NewHTTPServer creates the webhook server. An empty secret disables the
// secret token check.
func NewHTTPServer(cfg conf.ServerConfig, secret string, bot UpdateHandler, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPServer{
		engine: gin.New(),
		secret: secret,
		bot:    bot,
		logger: logger.With("component", "http"),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestID())

	s.engine.GET("/health", s.health)
	s.engine.POST(cfg.WebhookPath, s.webhook)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// requestID tags each request with an id and a request scoped logger
func (s *HTTPServer) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		log := s.logger.With("request_id", id)
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), log))

		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) webhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, s.logger)

	if s.secret != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			log.Warn("rejected webhook with bad secret token", "remote", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	var update telegram.Update
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUpdateBytes)
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		log.Warn("decode update", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}

	// Telegram may drop the connection on slow replies; the update is
	// still processed to the end.
	s.bot.HandleUpdate(context.WithoutCancel(ctx), &update)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
