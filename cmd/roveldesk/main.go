package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/netscane/rovel-desk/internal/api"
	"github.com/netscane/rovel-desk/pkg/audio"
	backend "github.com/netscane/rovel-desk/pkg/api"
	"github.com/netscane/rovel-desk/pkg/cache"
	"github.com/netscane/rovel-desk/pkg/config"
	"github.com/netscane/rovel-desk/pkg/db"
	"github.com/netscane/rovel-desk/pkg/engine"
	"github.com/netscane/rovel-desk/pkg/logging"
	"github.com/netscane/rovel-desk/pkg/push"
	"github.com/netscane/rovel-desk/pkg/tracker"
	"github.com/netscane/rovel-desk/pkg/version"
)

var (
	configPath = flag.String("config", "configs/roveldesk.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// .env can carry ROVEL_BASE_URL / ROVEL_WS_URL overrides; absence is fine.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.Save(*configPath, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("RovelDesk started", "version", version.Version, "backend", cfg.Backend.BaseURL)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.PruneCache(cfg.Cache.MaxAge.Std()); err != nil {
		slog.Error("Audio cache pruning failed", "error", err)
	}

	trk := tracker.New()
	audioCache := cache.NewSQLiteCache(dbConn)
	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout.Std(), audioCache, trk)

	pushClient := push.NewClient(cfg.Backend.WSURL)
	defer pushClient.Close()

	player := audio.New()
	defer player.Shutdown()

	eng := engine.New(cfg.Engine, client, player, pushClient, trk)
	go eng.Run()
	defer eng.Stop()

	return runServer(ctx, cfg, eng, client, player, trk)
}

func runServer(ctx context.Context, cfg *config.Config, eng *engine.Engine, client *backend.Client, player *audio.Player, trk *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewPlaybackHandler(eng),
		api.NewLibraryHandler(client),
		api.NewStatsHandler(trk),
		api.NewAudioHandler(player),
		shutdownFunc,
	)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
