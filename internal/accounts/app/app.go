package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	httpapi "github.com/sandcastle-auth/sandcastle/internal/accounts/http"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store/drivers/sqlite"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// BuildVersion is overridden at release time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the account service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	adminService     *service.AdminService
	accountService   *service.AccountService
	lifecycleService *service.LifecycleService
	sweeperService   *service.SweeperService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// It also makes sure exactly one admin account exists before serving.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sandcastle",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()

	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := app.adminService.Ensure(ctx); err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to ensure admin account: %w", err)
	}

	app.initHTTP()

	return app, nil
}

// Store exposes the underlying store for CLI commands that bypass HTTP.
func (app *Application) Store() store.Store { return app.db }

// AdminService exposes the admin factory for the recreate-admin command.
func (app *Application) AdminService() *service.AdminService { return app.adminService }

// Logger exposes the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sweeperService.Start()

	app.logger.Info("sandcastle starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"logout_window", app.cfg.LogoutWindow,
		"delete_window", app.cfg.DeleteWindow,
		"auto_delete", app.cfg.AutoDelete,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sandcastle...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.sweeperService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("sandcastle stopped")
	return nil
}

// Close releases resources without running the HTTP shutdown path. Used by
// one-shot CLI commands.
func (app *Application) Close() error {
	return app.db.Close()
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	clock := service.SystemClock()

	app.adminService = &service.AdminService{
		Store:           app.db,
		Clock:           clock,
		Role:            domain.RoleAdmin,
		DefaultName:     app.cfg.AdminName,
		DefaultPassword: app.cfg.AdminPassword,
	}

	app.accountService = &service.AccountService{
		Store: app.db,
		Clock: clock,
	}

	app.lifecycleService = &service.LifecycleService{
		Store:             app.db,
		Clock:             clock,
		Admin:             app.adminService,
		LogoutWindow:      app.cfg.LogoutWindow,
		DeleteWindow:      app.cfg.DeleteWindow,
		AutoDelete:        app.cfg.AutoDelete,
		CheckRemoteLogout: app.cfg.CheckRemoteLogout,
	}

	app.sweeperService = service.NewSweeperService(
		app.lifecycleService,
		app.logger,
		app.cfg.SweepInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.LifecycleService = app.lifecycleService
	router.AccountService = app.accountService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
