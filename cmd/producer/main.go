package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amitbasuri/taskbus-go/examples"
	"github.com/amitbasuri/taskbus-go/internal/config"
	"github.com/amitbasuri/taskbus-go/internal/models"
	"github.com/amitbasuri/taskbus-go/internal/registry"
	"github.com/amitbasuri/taskbus-go/internal/storage"
	"github.com/amitbasuri/taskbus-go/internal/storage/postgres"
	"github.com/amitbasuri/taskbus-go/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// remotePublisher adapts a registry+store pair to webhook.Publisher: a
// remote task invocation runs inline through the registry's deadline-raced
// handler, while a remote event is appended to the log and left for the
// fanout worker to project.
type remotePublisher struct {
	reg                       *registry.Registry
	store                     storage.Store
	defaultEventRetentionDays int
}

func (p *remotePublisher) InvokeRemoteTask(header http.Header, task webhook.IncomingRemoteTask) (any, error) {
	tc := registry.NewTaskContext(0, task.TaskName, task.Trigger, task.RetriesSoFar, task.ExpireSeconds)
	output, err := p.reg.HandleTask(context.Background(), tc, task.Data)
	if err != nil {
		return output, err
	}
	return output, nil
}

func (p *remotePublisher) PublishRemoteEvent(header http.Header, event webhook.IncomingRemoteEvent) error {
	in := models.EventInsert{Name: event.Name, Data: event.Data}
	if p.defaultEventRetentionDays > 0 {
		days := p.defaultEventRetentionDays
		in.RetentionDays = &days
	}
	_, err := p.store.InsertEvent(context.Background(), in)
	return err
}

func main() {
	_ = godotenv.Load()

	var env config.Server
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal("cannot load env:", err)
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	slog.Info("starting task bus webhook server")

	store, err := postgres.Open(context.Background(), env.Bus.Database.ToDbConnectionUri(), env.Bus.Database.Schema)
	if err != nil {
		log.Fatal("failed to open store:", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		log.Fatal("failed to apply migrations:", err)
	}

	models.SetDefaultKeepInSeconds(env.Bus.KeepInSeconds)

	reg, err := registry.New(env.Bus.Queue)
	if err != nil {
		log.Fatal("failed to create registry:", err)
	}
	if err := examples.Register(reg); err != nil {
		log.Fatal("failed to register handlers:", err)
	}

	var signingKey []byte
	if env.Bus.WebhookSigningSecret != "" {
		signingKey = []byte(env.Bus.WebhookSigningSecret)
	}
	webhookHandler := webhook.NewHandler(reg, signingKey)
	publisher := &remotePublisher{reg: reg, store: store, defaultEventRetentionDays: env.Bus.RetentionInDays}

	r := gin.Default()
	webhookHandler.Register(r, "/webhook", publisher)

	r.GET("/readiness", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/liveness", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	r.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.GetState())
	})

	srv := &http.Server{
		Addr:    ":" + env.ServerPort,
		Handler: r,
	}

	go func() {
		slog.Info("HTTP server listening", "port", env.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown:", err)
	}
	slog.Info("webhook server exited gracefully")
}
