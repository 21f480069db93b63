// Package http provides the HTTP adapter over the workflow engine. It is a
// thin layer: request decoding, actor extraction and error mapping only.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/auth"
	"github.com/campusflow/procurement/internal/domain/workflow"
	"github.com/campusflow/procurement/internal/engine"
)

// Logger interface for logging operations, satisfied by *zap.SugaredLogger
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	engine     *engine.Engine
	audit      port.AuditQuerier
	tokens     *auth.TokenService
	registry   *prometheus.Registry
	logger     Logger
}

// NewServer creates a new HTTP server over the workflow engine
func NewServer(
	config ServerConfig,
	eng *engine.Engine,
	audit port.AuditQuerier,
	tokens *auth.TokenService,
	registry *prometheus.Registry,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		engine:   eng,
		audit:    audit,
		tokens:   tokens,
		registry: registry,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Infow("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

const actorKey = "actor"

// authMiddleware verifies the bearer token and stores the actor context
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid bearer token",
			})
			return
		}

		c.Set(actorKey, engine.Actor{
			UserID:   claims.UserID,
			UserName: claims.UserName,
			Role:     claims.Role,
		})
		c.Next()
	}
}

// requireRoles restricts a route to the given roles
func requireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "insufficient role",
		})
	}
}

func actorFrom(c *gin.Context) engine.Actor {
	actor, _ := c.MustGet(actorKey).(engine.Actor)
	return actor
}

func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.engine, s.audit, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	api.Use(s.authMiddleware())
	{
		api.POST("/requests", handlers.CreateRequest)
		api.GET("/requests", handlers.ListRequests)
		api.GET("/requests/pending", handlers.ListPending)
		api.GET("/requests/counts", handlers.PendingCounts)
		api.GET("/requests/:id", handlers.GetRequest)
		api.POST("/requests/:id/approve", handlers.Approve)
		api.POST("/requests/:id/return", handlers.Return)
		api.POST("/requests/:id/comments", handlers.AddComment)
		api.POST("/requests/:id/documents", handlers.AttachDocuments)
		api.DELETE("/requests/:id", requireRoles(workflow.RoleAdmin), handlers.DeleteRequest)

		api.POST("/signatures", handlers.SaveSignature)
		api.GET("/signatures", handlers.ListSignatures)

		api.GET("/audit-logs", requireRoles(workflow.RoleAdmin, workflow.RolePrincipal), handlers.ListAuditLogs)
		api.GET("/audit-logs/summary", handlers.ActivitySummary)
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Infow("Starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Infow("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
