// Package config holds the environment-driven configuration for the bus,
// following the teacher's envconfig struct-per-concern layout
// (internal/config/config.go's Database/Server/Worker split).
package config

import (
	"fmt"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

// Database holds the database connection configuration.
type Database struct {
	Username     string `envconfig:"DB_USERNAME"`
	Password     string `envconfig:"DB_PASSWORD"`
	Host         string `envconfig:"DB_HOST"`
	Port         string `envconfig:"DB_PORT"`
	Database     string `envconfig:"DB_DATABASE"`
	Schema       string `envconfig:"DB_SCHEMA" default:"public"`
	SSLMode      string `envconfig:"DB_SSL_MODE" default:"require"`
	PoolMaxConns int    `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
}

// ToDbConnectionUri returns a connection URI to be used with pgxpool.
// search_path is passed through as a startup runtime parameter so Schema
// actually selects which schema every session on the pool operates in,
// not just the advisory-lock key derived from it.
func (d Database) ToDbConnectionUri() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%d&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode, d.PoolMaxConns, d.Schema,
	)
}

// Bus holds the configuration recognized at the bus level, per spec.md §6.
type Bus struct {
	Database Database

	Queue string `envconfig:"BUS_QUEUE" required:"true"`

	RetentionInDays   int `envconfig:"BUS_RETENTION_IN_DAYS" default:"30"`
	KeepInSeconds     int `envconfig:"BUS_KEEP_IN_SECONDS" default:"604800"`
	EventsFetchSize   int `envconfig:"BUS_EVENTS_FETCH_SIZE" default:"200"`
	ExpireIntervalSec int `envconfig:"BUS_EXPIRE_INTERVAL_SEC" default:"30"`
	CleanUpIntervalSec int `envconfig:"BUS_CLEANUP_INTERVAL_SEC" default:"300"`

	WorkerConcurrency   int     `envconfig:"BUS_WORKER_CONCURRENCY" default:"25"`
	WorkerIntervalMs    int     `envconfig:"BUS_WORKER_INTERVAL_MS" default:"1500"`
	WorkerRefillFactor  float64 `envconfig:"BUS_WORKER_REFILL_FACTOR" default:"0.33"`

	WebhookSigningSecret string `envconfig:"BUS_WEBHOOK_SIGNING_SECRET"`
}

// WorkerPollInterval returns WorkerIntervalMs as a time.Duration.
func (b Bus) WorkerPollInterval() time.Duration {
	return time.Duration(b.WorkerIntervalMs) * time.Millisecond
}

// ExpireInterval returns ExpireIntervalSec as a time.Duration.
func (b Bus) ExpireInterval() time.Duration {
	return time.Duration(b.ExpireIntervalSec) * time.Second
}

// CleanUpInterval returns CleanUpIntervalSec as a time.Duration.
func (b Bus) CleanUpInterval() time.Duration {
	return time.Duration(b.CleanUpIntervalSec) * time.Second
}

// Server holds the configuration for the webhook HTTP front-end.
type Server struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	Bus        Bus
}

// ReservedQueue re-exports models.ReservedQueue for callers that only
// import config.
const ReservedQueue = models.ReservedQueue
