package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/CTAG07/Drosera/pkg/blogstore"
	"github.com/CTAG07/Drosera/pkg/i18n"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	if err := run(baseLogger, shutdownChan); err != nil {
		baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
		os.Exit(1)
	}

	baseLogger.Info("Drosera has shut down.")
}

// run hosts the server and returns when it has been shut down.
func run(baseLogger *slog.Logger, shutdownChan chan os.Signal) error {

	config, err := LoadConfig("./config.json")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var logLevel slog.Level
	switch strings.ToLower(config.Server.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("Starting Drosera", "version", Version, "commit", Commit, "build_date", BuildDate)

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err = blogstore.SetupSchema(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to set up content schema: %w", err)
	}

	catalogs, err := i18n.LoadDir(config.Server.LangDir)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to load localization catalogs: %w", err)
	}
	if _, ok := catalogs[config.Server.DefaultLang]; !ok {
		baseLogger.Warn("No catalog file for the default language, placeholder localization will fail",
			"default_lang", config.Server.DefaultLang, "lang_dir", config.Server.LangDir)
		catalogs[config.Server.DefaultLang] = i18n.NewCatalog(config.Server.DefaultLang, nil)
	}
	logger.Info("Loaded localization catalogs", "count", len(catalogs))

	server, err := NewServer(config, logger, db, catalogs)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create server object: %w", err)
	}

	httpServer := &http.Server{Addr: config.Server.ServerAddr, Handler: server.mux}

	go func() {
		logger.Info("Starting Drosera page server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Page server failed", "error", err)
		}
	}()

	<-shutdownChan // Block here until the OS asks us to stop.

	logger.Info("Stopping server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	server.Close()
	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	return nil
}
