// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	MinSweepInterval = 30 * time.Second
	MaxSweepInterval = 60 * time.Second
)

type Postgres struct {
	Host              string `env:"HOST" envDefault:"localhost"`
	Port              int    `env:"PORT" envDefault:"5432"`
	User              string `env:"USER" envDefault:"pickup"`
	Password          string `env:"PASSWORD" envDefault:"pickup"`
	DBName            string `env:"NAME" envDefault:"pickup"`
	MigrationsDirPath string `env:"MIGRATIONS" envDefault:"internal/repository/migrations"`
}

// Service configures cmd/pickup-service.
type Service struct {
	HTTPAddr       string        `env:"PICKUP_HTTP_ADDR" envDefault:":8080"`
	PickupWindow   time.Duration `env:"PICKUP_WINDOW" envDefault:"30m"`
	SweepInterval  time.Duration `env:"PICKUP_SWEEP_INTERVAL" envDefault:"30s"`
	RequestTimeout time.Duration `env:"PICKUP_REQUEST_TIMEOUT" envDefault:"3s"`
	OutboxInterval time.Duration `env:"PICKUP_OUTBOX_INTERVAL" envDefault:"1s"`
	DraftTTL       time.Duration `env:"PICKUP_DRAFT_TTL" envDefault:"30m"`

	// OrderStore selects the order repository: "postgres" or "memory".
	OrderStore string   `env:"PICKUP_ORDER_STORE" envDefault:"postgres"`
	Postgres   Postgres `envPrefix:"PICKUP_DB_"`

	CatalogDBPath     string `env:"PICKUP_CATALOG_DB" envDefault:"catalog.db"`
	CatalogMigrations string `env:"PICKUP_CATALOG_MIGRATIONS" envDefault:"internal/catalog/migrations"`

	RedisAddr    string   `env:"PICKUP_REDIS_ADDR" envDefault:"localhost:6379"`
	KafkaBrokers []string `env:"PICKUP_KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Accounts configures cmd/accounts-consumer.
type Accounts struct {
	MongoURI      string   `env:"ACCOUNTS_MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string   `env:"ACCOUNTS_MONGO_DB" envDefault:"pickup_accounts"`
	KafkaBrokers  []string `env:"ACCOUNTS_KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	GroupID       string   `env:"ACCOUNTS_GROUP_ID" envDefault:"accounts-consumer"`
	OTLPEndpoint  string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Scanner configures cmd/scanner.
type Scanner struct {
	VerifyURL     string        `env:"SCANNER_VERIFY_URL" envDefault:"http://localhost:8080/api/v1/verify"`
	SnapshotPath  string        `env:"SCANNER_SNAPSHOT_PATH" envDefault:"frame.png"`
	FrameInterval time.Duration `env:"SCANNER_FRAME_INTERVAL" envDefault:"500ms"`
	Cooldown      time.Duration `env:"SCANNER_COOLDOWN" envDefault:"3s"`
	Timeout       time.Duration `env:"SCANNER_TIMEOUT" envDefault:"3s"`
}

func LoadService() (*Service, error) {
	var cfg Service
	if err := parseEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.SweepInterval < MinSweepInterval || cfg.SweepInterval > MaxSweepInterval {
		return nil, fmt.Errorf("PICKUP_SWEEP_INTERVAL must be between %s and %s, got %s",
			MinSweepInterval, MaxSweepInterval, cfg.SweepInterval)
	}
	if cfg.PickupWindow <= 0 {
		return nil, fmt.Errorf("PICKUP_WINDOW must be positive, got %s", cfg.PickupWindow)
	}
	switch cfg.OrderStore {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("PICKUP_ORDER_STORE must be postgres or memory, got %q", cfg.OrderStore)
	}
	return &cfg, nil
}

func LoadAccounts() (*Accounts, error) {
	var cfg Accounts
	if err := parseEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadScanner() (*Scanner, error) {
	var cfg Scanner
	if err := parseEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.FrameInterval <= 0 || cfg.Cooldown < 0 {
		return nil, fmt.Errorf("scanner cadence must be positive")
	}
	return &cfg, nil
}

func parseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
