package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lavaeater/civ-server-go/internal/config"
	"github.com/lavaeater/civ-server-go/internal/game"
	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/repository"
	"github.com/lavaeater/civ-server-go/internal/server"
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

	logger.Info("starting civ server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	m, err := board.LoadMap(cfg.Game.MapPath)
	if err != nil {
		logger.Fatal("failed to load map", zap.String("path", cfg.Game.MapPath), zap.Error(err))
	}
	logger.Info("map loaded", zap.String("path", cfg.Game.MapPath), zap.Int("areas", m.Len()))

	store, err := repository.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	engine, err := loadEngine(ctx, cfg, m, store, logger)
	if err != nil {
		logger.Fatal("failed to set up game", zap.Error(err))
	}

	recorder, err := game.NewReplayRecorder(logger, cfg.Game.ReplayDir, engine.GameID())
	if err != nil {
		logger.Fatal("failed to open replay", zap.String("directory", cfg.Game.ReplayDir), zap.Error(err))
	}
	if err := engine.SetReplayRecorder(recorder); err != nil {
		logger.Fatal("failed to attach replay recorder", zap.Error(err))
	}

	gateway, err := server.NewGateway(cfg.Server, engine, store, logger)
	if err != nil {
		logger.Fatal("failed to create gateway", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting websocket gateway", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(serveErr))
			cancel()
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		gateway.Run(ctx)
	}()

	logger.Info("civ server initialized",
		zap.String("version", version),
		zap.String("game_id", engine.GameID()),
		zap.Int("round", engine.Round()),
		zap.String("activity", engine.Activity().String()),
	)

	// Wait for termination signal
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully...")
	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}

	if _, err := store.Save(shutdownCtx, engine.Snapshot()); err != nil {
		logger.Error("failed to save final snapshot", zap.Error(err))
	}
	if err := recorder.Save(); err != nil {
		logger.Error("failed to save replay", zap.Error(err))
	}

	logger.Info("civ server stopped")
}

// loadEngine resumes the configured game from its latest snapshot, falling
// back to the last frame of its replay, or seats the configured players and
// starts a new one.
func loadEngine(ctx context.Context, cfg *config.Config, m *board.Map, store repository.Store, logger *zap.Logger) (*game.Engine, error) {
	engineCfg := cfg.Game.EngineConfig()

	if cfg.Game.ID != "" {
		snap, err := resumePoint(ctx, cfg, store, logger)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			engine, err := game.RestoreEngine(logger, m, engineCfg, snap)
			if err != nil {
				return nil, fmt.Errorf("restore %s: %w", cfg.Game.ID, err)
			}
			logger.Info("game restored",
				zap.String("game_id", snap.GameID),
				zap.Int("round", snap.Round),
				zap.String("activity", snap.Activity),
			)
			return engine, nil
		}
	}

	engine := game.NewEngine(logger, m, engineCfg)
	for _, p := range cfg.Game.Players {
		if err := engine.AddPlayer(board.PlayerID(p.ID), p.Faction, p.Human, board.AreaID(p.Start)); err != nil {
			return nil, fmt.Errorf("seat %s: %w", p.ID, err)
		}
	}
	if _, err := engine.Start(); err != nil {
		return nil, err
	}
	if _, err := store.Save(ctx, engine.Snapshot()); err != nil {
		return nil, fmt.Errorf("save initial snapshot: %w", err)
	}
	logger.Info("new game started",
		zap.String("game_id", engine.GameID()),
		zap.Int("players", len(cfg.Game.Players)),
	)
	return engine, nil
}

// resumePoint finds the state to resume the configured game from. It returns
// nil when the game was never saved.
func resumePoint(ctx context.Context, cfg *config.Config, store repository.Store, logger *zap.Logger) (*game.Snapshot, error) {
	snap, err := store.Latest(ctx, cfg.Game.ID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	replay, err := game.LoadReplay(cfg.Game.ReplayDir, cfg.Game.ID)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	last, ok := replay.Last()
	if !ok {
		return nil, nil
	}
	logger.Warn("no stored snapshot, resuming from replay",
		zap.String("game_id", cfg.Game.ID),
		zap.Int("frames", replay.Len()),
	)
	return last, nil
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
