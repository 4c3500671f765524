package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/technomancy/server-go/internal/cards"
	"github.com/technomancy/server-go/internal/config"
	"github.com/technomancy/server-go/internal/game"
	"github.com/technomancy/server-go/internal/repository"
	"github.com/technomancy/server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Load card catalog
	catalog, err := cards.LoadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded",
		zap.String("path", cfg.Game.CatalogPath),
		zap.Int("cards", catalog.Len()),
	)

	// Initialize game engine
	engine := game.NewEngine(catalog, logger)

	// Initialize optional result storage
	var results *repository.ResultRepository
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		results = repository.NewResultRepository(db)
		if err := results.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to ensure database schema", zap.Error(err))
		}
	}

	// Initialize websocket server
	gameServer := server.NewServer(engine, logger)
	gameServer.SetBaseContext(ctx)
	gameServer.SetDefaultDisconnectPolicy(game.DisconnectPolicy(cfg.Game.DisconnectPolicy))
	if cfg.Game.RecordReplays {
		if err := os.MkdirAll(cfg.Game.ReplayDir, 0o755); err != nil {
			logger.Fatal("failed to create replay directory", zap.Error(err))
		}
		gameServer.EnableReplayRecording()
	}

	engine.OnFinished(func(report game.FinalStateReport) {
		if cfg.Game.RecordReplays {
			saveJournal(engine, report.GameID, cfg.Game.ReplayDir, logger)
		}
		if results != nil {
			saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer saveCancel()
			if err := results.SaveResult(saveCtx, report); err != nil {
				logger.Error("failed to persist game result",
					zap.String("game_id", report.GameID),
					zap.Error(err))
			}
		}
		gameServer.NotifyGameOver(report)
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: gameServer.Routes(),
	}

	go func() {
		logger.Info("starting websocket server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("websocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("game server initialized",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("game server stopped")
}

// saveJournal exports a finished game's replay journal to disk.
func saveJournal(engine *game.Engine, gameID, dir string, logger *zap.Logger) {
	session, err := engine.Session(gameID)
	if err != nil {
		return
	}
	journal := session.Journal()
	if journal == nil {
		return
	}
	path := filepath.Join(dir, gameID+".journal.gz")
	if err := journal.SaveToFile(path); err != nil {
		logger.Error("failed to save replay journal",
			zap.String("game_id", gameID),
			zap.Error(err))
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
