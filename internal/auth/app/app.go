// Package app wires configuration, storage, keys, services and the HTTP
// server into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	httpapi "github.com/shelfkeeper/shelfkeeper/internal/auth/http"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/ratelimit"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store/drivers/sqlite"
	"github.com/shelfkeeper/shelfkeeper/pkg/cryptox"
	"github.com/shelfkeeper/shelfkeeper/pkg/idx"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds every long-lived dependency of the auth service.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	limiter    ratelimit.Limiter

	tokenService        *service.TokenService
	loginService        *service.LoginService
	userService         *service.UserService
	mfaService          *service.MFAService
	adminService        *service.AdminService
	auditService        *service.AuditService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: app.cfg.Algorithm,
		Issuer:    app.cfg.Issuer,
		NumKeys:   app.cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	app.initLimiter()
	app.initServices()
	app.initHTTP()

	if err := app.seedAdmin(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	return app, nil
}

// seedAdmin provisions the configured super_admin on first start so the
// admin surface is reachable without manual database edits. A no-op when
// the account already exists or the config is absent.
func (app *Application) seedAdmin(ctx context.Context) error {
	cfg := app.cfg
	if cfg.AdminUsername == "" || cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := app.db.Users().GetUserByIdentifier(ctx, cfg.AdminUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := cryptox.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = app.db.Users().CreateUser(ctx, domain.User{
		ID:           idx.MustNew().String(),
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
		IsActive:     true,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}

	app.logger.Info("seeded super admin account", "username", cfg.AdminUsername)
	return nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown drains outstanding requests, stops housekeeping and closes the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

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

// initLimiter picks the login-counter backend: redis when an address is
// configured so the budget is shared across instances, otherwise
// in-process.
func (app *Application) initLimiter() {
	if app.cfg.RedisAddr == "" {
		app.limiter = ratelimit.NewMemory(
			app.cfg.LoginAttemptLimit, app.cfg.LoginAttemptWindow)
		return
	}

	client := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
	app.limiter = ratelimit.NewRedis(client,
		app.cfg.LoginAttemptLimit, app.cfg.LoginAttemptWindow, "")
	app.logger.Info("login attempt counters backed by redis",
		"addr", app.cfg.RedisAddr)
}

func (app *Application) initServices() {
	app.auditService = &service.AuditService{Store: app.db}

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Keys:       app.keyManager,
		Audit:      app.auditService,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}
	app.loginService = &service.LoginService{
		Store:        app.db,
		Tokens:       app.tokenService,
		Limiter:      app.limiter,
		Audit:        app.auditService,
		ChallengeTTL: app.cfg.ChallengeTTL,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Tokens: app.tokenService,
		Audit:  app.auditService,
		Issuer: app.cfg.MFAIssuer,
	}
	app.userService = &service.UserService{
		Store:   app.db,
		Tokens:  app.tokenService,
		MFA:     app.mfaService,
		Limiter: app.limiter,
		Audit:   app.auditService,
	}
	app.adminService = &service.AdminService{
		Store:  app.db,
		Tokens: app.tokenService,
		Audit:  app.auditService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet(),
		app.keyManager.Verifier(),
		BuildVersion,
		app.db,
		app.logger,
	)

	router.LoginService = app.loginService
	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.MFAService = app.mfaService
	router.AdminService = app.adminService
	router.AuditService = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
