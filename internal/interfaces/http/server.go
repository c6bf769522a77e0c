// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application
// service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crmkit/workflow-engine/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	definitionService service.DefinitionService
	workflowService   service.WorkflowService
	approvalService   service.ApprovalService
	historyService    service.HistoryService
	logger            Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	definitionService service.DefinitionService,
	workflowService service.WorkflowService,
	approvalService service.ApprovalService,
	historyService service.HistoryService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:            config,
		router:            gin.New(),
		definitionService: definitionService,
		workflowService:   workflowService,
		approvalService:   approvalService,
		historyService:    historyService,
		logger:            logger,
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

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.definitionService, s.workflowService, s.approvalService, s.historyService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api/tenants/:tenantId")
	{
		// Definitions
		api.POST("/definitions", handlers.CreateDefinition)
		api.GET("/definitions", handlers.ListDefinitionVersions)
		api.GET("/definitions/active", handlers.GetActiveDefinition)
		api.POST("/definitions/:id/publish", handlers.PublishDefinition)

		// Instances
		api.POST("/instances", handlers.CreateInstance)
		api.GET("/instances/:id", handlers.GetInstance)
		api.POST("/instances/:id/start", handlers.StartInstance)
		api.POST("/instances/:id/transitions", handlers.RequestTransition)
		api.POST("/instances/:id/advance", handlers.AdvanceInstance)
		api.POST("/instances/:id/cancel", handlers.CancelInstance)
		api.GET("/instances/:id/history", handlers.GetTransitionHistory)

		// Steps
		api.POST("/steps/:stepId/votes", handlers.Vote)
		api.POST("/steps/:stepId/complete", handlers.CompleteStep)
		api.POST("/steps/:stepId/reset", handlers.ResetStep)
		api.GET("/steps/:stepId/approvals", handlers.GetApprovalLedger)

		// Approver work queue
		api.GET("/approvers/:approverId/pending", handlers.ListPendingApprovals)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
