package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	taskbus "github.com/amitbasuri/taskbus-go"
	"github.com/amitbasuri/taskbus-go/examples"
	"github.com/amitbasuri/taskbus-go/internal/config"
	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage/postgres"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func main() {
	_ = godotenv.Load()

	var env config.Bus
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal("cannot load env:", err)
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	slog.Info("starting task bus worker", "queue", env.Queue)

	store, err := postgres.Open(context.Background(), env.Database.ToDbConnectionUri(), env.Database.Schema)
	if err != nil {
		log.Fatal("failed to open store:", err)
	}

	models.SetDefaultKeepInSeconds(env.KeepInSeconds)

	reg, err := registry.New(env.Queue)
	if err != nil {
		log.Fatal("failed to create registry:", err)
	}
	if err := examples.Register(reg); err != nil {
		log.Fatal("failed to register handlers:", err)
	}

	cfg := taskbus.DefaultConfig()
	cfg.Task.MaxConcurrency = env.WorkerConcurrency
	cfg.Task.PollInterval = env.WorkerPollInterval()
	cfg.Task.RefillThreshold = env.WorkerRefillFactor
	cfg.Fanout.EventBatchSize = env.EventsFetchSize
	cfg.Fanout.PollInterval = env.WorkerPollInterval()
	cfg.Maintenance.ExpireInterval = env.ExpireInterval()
	cfg.Maintenance.CleanUpInterval = env.CleanUpInterval()
	cfg.DefaultEventRetentionDays = env.RetentionInDays

	bus, err := taskbus.New(env.Queue, store, reg, cfg)
	if err != nil {
		log.Fatal("failed to create bus:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bus.Start(ctx); err != nil {
		log.Fatal("failed to start bus:", err)
	}

	<-ctx.Done()
	slog.Info("shutting down task bus worker")
	if err := bus.Stop(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	slog.Info("task bus worker stopped gracefully")
}
