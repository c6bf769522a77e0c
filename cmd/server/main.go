package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/crmkit/workflow-engine/internal/config"
	"github.com/crmkit/workflow-engine/internal/container"
	httpadapter "github.com/crmkit/workflow-engine/internal/interfaces/http"
	"github.com/crmkit/workflow-engine/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// A local .env file, when present, feeds the env bindings in config.Load.
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting workflow engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := app.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	services := app.Services()
	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		services.Definition,
		services.Workflow,
		services.Approval,
		services.History,
		&serverLogger{logger: logger},
	)

	// Blocks until the context is cancelled by SIGINT/SIGTERM.
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited")
}

// serverLogger adapts zap.Logger to the http adapter's Logger interface.
type serverLogger struct {
	logger *zap.Logger
}

func (l *serverLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, toFields(keysAndValues...)...)
}

func (l *serverLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues...)...)
}

func toFields(keysAndValues ...interface{}) []zap.Field {
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
