// Package server initializes and runs the main application server.
// It configures the key-value backend, wires the collection services,
// handles graceful shutdown, and starts the HTTP server for the API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/zhinian/blogstore/internal/logging"
	"github.com/zhinian/blogstore/internal/server/collections"
	"github.com/zhinian/blogstore/internal/server/config"
	"github.com/zhinian/blogstore/internal/server/httpapi"
	"github.com/zhinian/blogstore/internal/server/integrity"
	"github.com/zhinian/blogstore/internal/server/kv"
	"github.com/zhinian/blogstore/internal/server/seed"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  kv.Store
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	store, err := newStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	cs := collections.NewService(store, logger)
	checker := integrity.NewChecker(store, logger)
	repairer := integrity.NewRepairer(store, logger)
	loader := seed.NewLoader(cs, store, logger)

	handler := httpapi.NewHandler(cs, checker, repairer, loader, logger)
	srv := httpapi.NewServer(c.EndpointAddrHTTP, handler, c.ShutdownTimeout, logger)

	return &App{config: c, logger: logger, store: store, server: srv}, nil
}

func newStore(ctx context.Context, c *config.Config) (kv.Store, error) {
	switch c.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendRedis:
		return kv.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	case config.BackendPostgres:
		return kv.NewPostgresStore(ctx, c.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown backend kind: %s", c.Backend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.closeStoreIfNeeded(ctx)
}

func (app *App) closeStoreIfNeeded(ctx context.Context) {
	c, ok := app.store.(interface{ Close() error })
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		app.logger.Error(ctx, "error closing store", "error", err.Error())
	}
}
