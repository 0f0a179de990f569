package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/ericfisherdev/smspanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/smspanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/smspanel/internal/application"
	"github.com/ericfisherdev/smspanel/internal/config"
	"github.com/ericfisherdev/smspanel/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing secrets).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	log.Info("migrations complete")

	// 5. Wire driven adapters.
	messageStore := sqliteadapter.NewMessageRepo(db)
	numberStore := sqliteadapter.NewNumberRepo(db)
	stateStore := sqliteadapter.NewStateRepo(db)

	credKey, err := cfg.DecodeCredentialKey()
	if err != nil {
		return err
	}
	credentialStore := sqliteadapter.NewCredentialRepo(db, credKey)
	if credKey == nil {
		log.Warn("no credential key configured, password changes will not persist")
	}

	// 6. Create the auth service. A stored password hash takes priority over
	// the environment seed.
	authSvc, err := application.NewAuthService(ctx, credentialStore, application.AuthConfig{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		APIKey:        cfg.APIKey,
	}, log)
	if err != nil {
		return err
	}

	// 7. Create and start the notification reconciler. The server polls for
	// its whole lifetime, so no session gate is wired here.
	notifier := application.NewNotifier(messageStore, stateStore, nil, cfg.PollInterval, log)
	notifier.Start(ctx)
	defer notifier.Stop()

	// 8. Create the HTTP handler and router.
	apiHandler := httphandler.NewHandler(messageStore, numberStore, authSvc, notifier, log)
	router := httphandler.NewRouter(apiHandler, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Long write timeout so notification streams are not cut off
		// mid-session.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
		}
	}()

	log.Info("smspanel started", "listen_addr", cfg.ListenAddr, "poll_interval", cfg.PollInterval)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	log.Info("shutting down")

	// 10. Graceful shutdown with a 10s drain window.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
