package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_pickup/internal/accounts"
	"github.com/fjod/go_pickup/internal/config"
	"github.com/fjod/go_pickup/internal/consumer"
	"github.com/fjod/go_pickup/internal/telemetry"
)

const serviceName = "accounts-consumer"

func main() {
	if err := run(); err != nil {
		slog.Error("accounts-consumer failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	telemetry.InitLogger(os.Stdout, serviceName)

	cfg, err := config.LoadAccounts()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	db, err := accounts.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer db.Client().Disconnect(context.Background())

	repo := accounts.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	slog.Info("connected to mongodb", "database", cfg.MongoDatabase)

	noShows := consumer.NewNoShowConsumer(repo, cfg.GroupID, cfg.KafkaBrokers...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		noShows.Run(ctx)
	}()

	<-ctx.Done()
	slog.Info("shutting down accounts-consumer")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("consumer stopped cleanly")
	case <-time.After(5 * time.Second):
		slog.Warn("consumer didn't stop in time")
	}

	noShows.Close()
	slog.Info("accounts-consumer stopped")
	return nil
}
