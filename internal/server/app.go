// Package server wires the application together: database, migrations,
// presence cache, services, realtime hub and the HTTP server, with graceful
// shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/server/cache"
	"github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/httpapi"
	"github.com/aturbins/hushwire/internal/server/presence"
	"github.com/aturbins/hushwire/internal/server/repositories/repomanager"
	"github.com/aturbins/hushwire/internal/server/services"
	"github.com/aturbins/hushwire/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	db    *sql.DB
	cache cache.Cache

	userService *services.UserService
	httpServer  *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("cache init error: %w", err)
		}
	} else {
		c = cache.NewMemoryCache()
	}

	registry := presence.NewRegistry(c, 2*cfg.LoginStateTTL)
	hub := ws.NewHub(registry, logger)

	userService := services.NewUserService(db, rm, cfg)
	deliveryService := services.NewDeliveryService(db, rm, hub, logger, cfg)
	photoService := services.NewPhotoService(db, rm, cfg)

	realtime := ws.NewHandler(hub, deliveryService, []byte(cfg.SecretKey), logger)
	api := httpapi.NewServer(userService, deliveryService, photoService, realtime, cfg, logger)

	httpServer := &http.Server{
		Addr:    cfg.EndpointAddrHTTP,
		Handler: api.Handler(),
	}

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		cache:       c,
		userService: userService,
		httpServer:  httpServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.userService.RunLoginStateReaper(ctx, app.config.LoginStateTTL, app.logger)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "shutdown", "error", err)
	}

	wg.Wait()

	if err := app.cache.Close(); err != nil {
		app.logger.Error(ctx, "cache close", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}

	app.logger.Info(ctx, "server stopped")
}
