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

	"occtitles/internal/api"
	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/db"
	"occtitles/pkg/generator"
	"occtitles/pkg/logging"
	"occtitles/pkg/probe"
	"occtitles/pkg/request"
	"occtitles/pkg/store"
	"occtitles/pkg/tracker"
	"occtitles/pkg/version"
)

const defaultConfigPath = "configs/occtitles.yaml"

var (
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Credentials may live in .env; a missing file is fine.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
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

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("OCC Titles Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	tr := tracker.New()
	prov := config.NewProvider(appCfg, st)

	client, err := assistant.NewClient(appCfg.Assistant, request.New(tr, clientConfig(appCfg)))
	if err != nil {
		return fmt.Errorf("failed to create assistant client: %w", err)
	}

	if err := verifyStartup(ctx, st, client, prov); err != nil {
		return err
	}

	svc := generator.NewService(client, prov, tr)
	titlesH := api.NewTitlesHandler(svc, prov)
	handlers := api.Handlers{
		Settings: api.NewSettingsHandler(st, prov, client),
		Stats:    api.NewStatsHandler(tr, titlesH.ActiveSessions),
		Titles:   titlesH,
	}

	srv := api.NewServer(appCfg.Server.Address, handlers, cancel)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return runServerLifecycle(ctx, srv, quit)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func clientConfig(cfg *config.Config) request.ClientConfig {
	return request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   cfg.Request.Timeout.Std(),
		BaseDelay: cfg.Request.Backoff.BaseDelay.Std(),
		MaxDelay:  cfg.Request.Backoff.MaxDelay.Std(),
	}
}

// verifyStartup runs the startup probes. Credential failures only stop the
// server when assistant.require_valid is set.
func verifyStartup(ctx context.Context, st store.Store, v probe.Validator, prov config.Provider) error {
	probes := probe.Startup(st, v, prov, prov.AppConfig().Assistant.RequireValid)
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	return nil
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
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
