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

	"github.com/kirinyoku/busgo/internal/config"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/redis"
	"github.com/kirinyoku/busgo/internal/service"
	"github.com/kirinyoku/busgo/internal/service/bookingflow"
	httpgin "github.com/kirinyoku/busgo/internal/transport/http/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *goredis.Client
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	}, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}

	// Initialize repositories
	stores := service.NewStores(rdb, service.StoreConfig{
		FlowTTL:    cfg.Flow.TTL,
		SessionTTL: cfg.Session.TTL,
	})

	// Initialize services
	services := service.NewServices(gw, stores, logger, service.Config{
		BookingFlow: bookingflow.Config{SuccessDelay: cfg.Flow.SuccessDelay},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, stores.Events, stores.Idem, logger, httpgin.Config{
		CORSOrigins:  cfg.Server.CORSOrigins,
		SessionTTL:   cfg.Session.TTL,
		SecureCookie: cfg.Server.SecureCookie,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		rdb:    rdb,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening",
			"host", a.cfg.Server.Host,
			"port", a.cfg.Server.Port,
			"backend", a.cfg.Backend.URL,
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
