// Package container wires the application together: database, repositories,
// services, dispatcher and outbound gateways, with ordered startup and
// reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/application/dispatcher"
	"github.com/crmkit/workflow-engine/internal/application/evaluator"
	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/application/service"
	"github.com/crmkit/workflow-engine/internal/config"
	"github.com/crmkit/workflow-engine/internal/infrastructure/notifier"
	"github.com/crmkit/workflow-engine/internal/infrastructure/persistence/repository"
	"github.com/crmkit/workflow-engine/internal/infrastructure/persistence/sqlite"
	"github.com/crmkit/workflow-engine/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Definition port.DefinitionRepository
	Instance   port.InstanceRepository
	Step       port.StepRepository
	Approval   port.ApprovalRepository
	History    port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Definition service.DefinitionService
	Workflow   service.WorkflowService
	Approval   service.ApprovalService
	History    service.HistoryService
}

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DB
	txDB         *sqlite.DB
	repositories *RepositoryBundle

	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration. Call Start to
// initialize components.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order: database and
// repositories first, then services, then the event dispatcher.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	c.initDispatcher()
	c.initServices()
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	c.txDB = sqlite.NewDB(db.DB, c.logger)
	c.repositories = &RepositoryBundle{
		Definition: repository.NewDefinitionRepository(db.DB, c.logger),
		Instance:   repository.NewInstanceRepository(db.DB, c.logger),
		Step:       repository.NewStepRepository(db.DB, c.logger),
		Approval:   repository.NewApprovalRepository(db.DB, c.logger),
		History:    repository.NewHistoryRepository(db.DB, c.logger),
	}
	return nil
}

func (c *Container) initDispatcher() {
	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: c.logger}),
	)
	notifier.Subscribe(c.dispatcher, notifier.NewLogNotifier(c.logger))
}

func (c *Container) initServices() {
	svcLogger := &zapLoggerAdapter{logger: c.logger}
	clock := port.SystemClock{}
	roles := notifier.NewStaticRoleResolver(c.config.Roles.Static)

	workflowSvc := service.NewWorkflowService(
		c.repositories.Definition,
		c.repositories.Instance,
		c.repositories.Step,
		c.repositories.Approval,
		c.repositories.History,
		c.txDB,
		evaluator.New(svcLogger),
		roles,
		clock,
		svcLogger,
		service.WithDispatcher(c.dispatcher),
	)

	c.services = &ServiceBundle{
		Definition: service.NewDefinitionService(c.repositories.Definition, c.txDB, clock, svcLogger),
		Workflow:   workflowSvc,
		Approval: service.NewApprovalService(
			workflowSvc,
			c.repositories.Approval,
			c.repositories.Step,
			c.repositories.Instance,
			svcLogger,
		),
		History: service.NewHistoryService(c.repositories.History, c.repositories.Instance),
	}
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// Services returns the application services. Start must have succeeded.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Ready reports whether the container finished initialization.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
