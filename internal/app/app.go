// Package app initializes and runs the console.
// It configures logging, the durable session mirror, the API gateway, the
// notification dispatcher and routing, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/urlify/internal/analytics"
	"github.com/patric-chuzhbe/urlify/internal/config"
	"github.com/patric-chuzhbe/urlify/internal/db/jsondb"
	"github.com/patric-chuzhbe/urlify/internal/db/memorystorage"
	"github.com/patric-chuzhbe/urlify/internal/db/redisdb"
	"github.com/patric-chuzhbe/urlify/internal/db/sqlitedb"
	"github.com/patric-chuzhbe/urlify/internal/db/storage"
	"github.com/patric-chuzhbe/urlify/internal/gateway"
	"github.com/patric-chuzhbe/urlify/internal/logger"
	"github.com/patric-chuzhbe/urlify/internal/models"
	"github.com/patric-chuzhbe/urlify/internal/navigation"
	"github.com/patric-chuzhbe/urlify/internal/notifications"
	"github.com/patric-chuzhbe/urlify/internal/router"
	"github.com/patric-chuzhbe/urlify/internal/session"
	"github.com/patric-chuzhbe/urlify/internal/urlcontroller"
)

const shutdownTimeout = 10 * time.Second

const (
	StorageTypeUnknown = iota
	StorageTypeRedis
	StorageTypeSQLite
	StorageTypeFile
	StorageTypeMemory
)

// App holds the configuration, the HTTP handler, the session mirror and the
// background notification dispatcher of a running console.
type App struct {
	cfg                 *config.Config
	db                  storage.Storage
	sessions            *session.Store
	notifications       *notifications.Dispatcher
	stopNotifications   context.CancelFunc
	httpHandler         http.Handler
	unsubscribeSessions func()
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up the session storage
// - restoring the session
// - starting the notification dispatcher
// - setting up the gateway, the controllers and the router
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, fmt.Errorf("in internal/app/app.go/New(): error while `getStorageByType()` calling: %w", err)
	}

	app.sessions = session.New(app.db)
	app.unsubscribeSessions = app.sessions.Subscribe(func(current *models.Session) {
		if current == nil {
			logger.Log.Infoln("signed out")
			return
		}
		logger.Log.Infoln("signed in", "email", current.User.Email)
	})

	app.notifications = notifications.New(app.cfg.NotificationsCapacity, app.cfg.NotificationsFlushInterval)
	notificationsRunCtx, stopNotifications := context.WithCancel(context.Background())
	app.stopNotifications = stopNotifications
	app.notifications.Run(notificationsRunCtx)

	apiGateway := gateway.New(
		app.cfg.APIBaseURL,
		app.cfg.RequestTimeout,
		app.sessions,
		navigation.ContextNavigator{},
	)

	app.httpHandler = router.New(
		app.sessions,
		apiGateway,
		urlcontroller.New(apiGateway, app.notifications, app.cfg.AppOrigin),
		analytics.New(apiGateway),
		app.notifications,
		app.cfg.BackendRoot(),
	)

	return app, nil
}

// Handler exposes the console's routes, e.g. for tests.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln(
		"console running",
		"RunAddr", a.cfg.RunAddr,
		"APIBaseURL", a.cfg.APIBaseURL,
		"authenticated", a.sessions.IsAuthenticated(),
	)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Flushing notifications and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.shutdown(shutdownCtx)

	case err := <-serverErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// shutdown stops the dispatcher, waits for its final flush and closes the storage.
func (a *App) shutdown(ctx context.Context) error {
	a.stopNotifications()
	select {
	case <-a.notifications.Done():
	case <-ctx.Done():
		logger.Log.Warnln("notification dispatcher did not stop in time")
	}
	a.unsubscribeSessions()

	return a.db.Close()
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.RedisAddr != "" {
		return StorageTypeRedis
	}

	if cfg.DatabaseDSN != "" {
		return StorageTypeSQLite
	}

	if cfg.SessionFile != "" {
		return StorageTypeFile
	}

	return StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case StorageTypeRedis:
		logger.Log.Infoln("session storage", "type", "redis", "addr", cfg.RedisAddr)
		return redisdb.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RequestTimeout)

	case StorageTypeSQLite:
		logger.Log.Infoln("session storage", "type", "sqlite")
		return sqlitedb.New(cfg.DatabaseDSN, cfg.RequestTimeout)

	case StorageTypeFile:
		logger.Log.Infoln("session storage", "type", "file", "path", cfg.SessionFile)
		return jsondb.New(cfg.SessionFile)
	}

	logger.Log.Infoln("session storage", "type", "memory")
	return memorystorage.New()
}
