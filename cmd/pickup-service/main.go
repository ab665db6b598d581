package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_pickup/internal/cache"
	"github.com/fjod/go_pickup/internal/catalog"
	"github.com/fjod/go_pickup/internal/config"
	h "github.com/fjod/go_pickup/internal/http"
	"github.com/fjod/go_pickup/internal/publisher"
	"github.com/fjod/go_pickup/internal/repository"
	"github.com/fjod/go_pickup/internal/service"
	"github.com/fjod/go_pickup/internal/sweeper"
	"github.com/fjod/go_pickup/internal/telemetry"
)

const (
	serviceName     = "pickup-service"
	shutdownTimeout = 10 * time.Second
)

type orderStore interface {
	repository.OrderRepository
	repository.OutboxRepository
}

func main() {
	if err := run(); err != nil {
		slog.Error("pickup-service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	telemetry.InitLogger(os.Stdout, serviceName)

	cfg, err := config.LoadService()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	store, err := openOrderStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrations); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	menu := catalog.NewGuarded(catalogRepo, cfg.RequestTimeout)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	orders := service.NewOrderService(store, menu, service.Options{
		PickupWindow:   cfg.PickupWindow,
		RequestTimeout: cfg.RequestTimeout,
	})
	drafts := service.NewDraftService(cache.NewRedisDraftCache(redisClient, cfg.DraftTTL), menu, orders)

	var wg sync.WaitGroup
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	sw := sweeper.New(orders, cfg.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.Run(bgCtx)
	}()

	var poller *publisher.OutboxPoller
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(store, cfg.OutboxInterval, cfg.KafkaBrokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(bgCtx)
		}()
	} else {
		slog.Warn("no kafka brokers configured, order events stay in the outbox")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: h.NewRouter(h.RouterConfig{
			Orders:         orders,
			Drafts:         drafts,
			Catalog:        menu,
			RequestTimeout: cfg.RequestTimeout,
			ServiceName:    serviceName,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("pickup-service listening", "addr", cfg.HTTPAddr, "store", cfg.OrderStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down pickup-service")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	bgCancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		slog.Warn("background workers didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			slog.Warn("failed to close kafka writer", "error", err)
		}
	}
	slog.Info("pickup-service stopped")
	return nil
}

func openOrderStore(cfg *config.Service) (orderStore, error) {
	if cfg.OrderStore == "memory" {
		slog.Warn("using in-memory order store, orders will not survive a restart")
		return repository.NewMemoryStore(), nil
	}

	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDirPath,
	}
	repo, err := repository.NewPostgresRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	slog.Info("database migrations completed")
	return repo, nil
}
