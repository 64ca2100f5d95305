package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Templates names the marketplace message templates used per fulfillment flow.
type Templates struct {
	Purchase    string
	Change      string
	Transfer    string
	BulkMigrate string
	Querying    string
}

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress      string
	DatabaseURI     string
	LogLevel        string
	ShutdownTimeout time.Duration

	MarketplaceURL   string
	MarketplaceToken string
	BackendURL       string
	BackendToken     string
	ProductIDs       []string

	OrderPollInterval time.Duration
	WorkerPoolSize    int
	MaxOrdersBatch    int

	MaxProcessingAttempts   int
	MigrationRunningRetries int
	MigrationReschedules    int
	CancellationWindowDays  int
	Templates               Templates

	MigrationSchedule string
	PriceSyncSchedule string
	PriceSyncAllow3YC bool

	KafkaBrokers []string
	KafkaTopic   string
	RedisAddr    string
	OrderLockTTL time.Duration

	OperatorKeyHash string
	WebhookSecret   string
}

const (
	defaultRunAddress              = ":8080"
	defaultLogLevel                = "info"
	defaultOrderPollInterval       = 30 * time.Second
	defaultWorkerPoolSize          = 4
	defaultShutdownTimeout         = 10 * time.Second
	defaultMaxOrdersBatch          = 32
	defaultMaxProcessingAttempts   = 10
	defaultMigrationRunningRetries = 15
	defaultMigrationReschedules    = 60
	defaultCancellationWindowDays  = 14
	defaultMigrationSchedule       = "*/15 * * * *"
	defaultPriceSyncSchedule       = "0 2 * * *"
	defaultKafkaTopic              = "vipm.fulfillment"
	defaultOrderLockTTL            = 5 * time.Minute
)

var defaultTemplates = Templates{
	Purchase:    "Purchase",
	Change:      "Change",
	Transfer:    "Transfer",
	BulkMigrate: "BulkMigrate",
	Querying:    "Querying",
}

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

// LoadArgs parses configuration from the given flags and the process environment.
func LoadArgs(args []string) (*Config, error) {
	return load(args, os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:              getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:             getString(lookup, "DATABASE_URI", ""),
		LogLevel:                getString(lookup, "LOG_LEVEL", defaultLogLevel),
		ShutdownTimeout:         getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		MarketplaceURL:          getString(lookup, "MPT_API_URL", ""),
		MarketplaceToken:        getString(lookup, "MPT_API_TOKEN", ""),
		BackendURL:              getString(lookup, "VIPM_API_URL", ""),
		BackendToken:            getString(lookup, "VIPM_API_TOKEN", ""),
		ProductIDs:              getList(lookup, "PRODUCT_IDS"),
		OrderPollInterval:       getDuration(lookup, "ORDER_POLL_INTERVAL", defaultOrderPollInterval),
		WorkerPoolSize:          getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		MaxOrdersBatch:          getInt(lookup, "POLL_BATCH_SIZE", defaultMaxOrdersBatch),
		MaxProcessingAttempts:   getInt(lookup, "MAX_PROCESSING_ATTEMPTS", defaultMaxProcessingAttempts),
		MigrationRunningRetries: getInt(lookup, "MIGRATION_RUNNING_MAX_RETRIES", defaultMigrationRunningRetries),
		MigrationReschedules:    getInt(lookup, "MIGRATION_RESCHEDULE_MAX_RETRIES", defaultMigrationReschedules),
		CancellationWindowDays:  getInt(lookup, "CANCELLATION_WINDOW_DAYS", defaultCancellationWindowDays),
		Templates: Templates{
			Purchase:    getString(lookup, "TEMPLATE_PURCHASE", defaultTemplates.Purchase),
			Change:      getString(lookup, "TEMPLATE_CHANGE", defaultTemplates.Change),
			Transfer:    getString(lookup, "TEMPLATE_TRANSFER", defaultTemplates.Transfer),
			BulkMigrate: getString(lookup, "TEMPLATE_BULK_MIGRATE", defaultTemplates.BulkMigrate),
			Querying:    getString(lookup, "TEMPLATE_QUERYING", defaultTemplates.Querying),
		},
		MigrationSchedule: getString(lookup, "MIGRATION_SCHEDULE", defaultMigrationSchedule),
		PriceSyncSchedule: getString(lookup, "PRICE_SYNC_SCHEDULE", defaultPriceSyncSchedule),
		PriceSyncAllow3YC: getBool(lookup, "PRICE_SYNC_ALLOW_3YC", false),
		KafkaBrokers:      getList(lookup, "KAFKA_BROKERS"),
		KafkaTopic:        getString(lookup, "KAFKA_TOPIC", defaultKafkaTopic),
		RedisAddr:         getString(lookup, "REDIS_ADDR", ""),
		OrderLockTTL:      getDuration(lookup, "ORDER_LOCK_TTL", defaultOrderLockTTL),
		OperatorKeyHash:   getString(lookup, "OPERATOR_API_KEY_HASH", ""),
		WebhookSecret:     getString(lookup, "WEBHOOK_SECRET", ""),
	}

	fs := flag.NewFlagSet("vipm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		pollIntervalStr    = cfg.OrderPollInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		productsStr        = strings.Join(cfg.ProductIDs, ",")
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.MarketplaceURL, "mpt-url", cfg.MarketplaceURL, "Marketplace API base URL")
	fs.StringVar(&cfg.BackendURL, "vipm-url", cfg.BackendURL, "Licensing backend API base URL")
	fs.StringVar(&productsStr, "products", productsStr, "Comma separated product ids")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent order workers")
	fs.StringVar(&pollIntervalStr, "poll-interval", pollIntervalStr, "Interval between marketplace order polls")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.IntVar(&cfg.MaxOrdersBatch, "poll-batch", cfg.MaxOrdersBatch, "Maximum orders per polling batch")
	fs.StringVar(&cfg.MigrationSchedule, "migration-schedule", cfg.MigrationSchedule, "Cron schedule of the migration scheduler")
	fs.StringVar(&cfg.PriceSyncSchedule, "price-sync-schedule", cfg.PriceSyncSchedule, "Cron schedule of the price sync")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.OrderPollInterval, err = time.ParseDuration(pollIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg.ProductIDs = splitList(productsStr)

	if tokenFile, ok := lookup("VIPM_API_TOKEN_FILE"); ok && tokenFile != "" {
		content, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read backend token file: %w", err)
		}
		cfg.BackendToken = strings.TrimSpace(string(content))
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.MaxOrdersBatch <= 0 {
		cfg.MaxOrdersBatch = defaultMaxOrdersBatch
	}

	if cfg.OrderPollInterval <= 0 {
		cfg.OrderPollInterval = defaultOrderPollInterval
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.MaxProcessingAttempts <= 0 {
		cfg.MaxProcessingAttempts = defaultMaxProcessingAttempts
	}

	if cfg.MigrationRunningRetries <= 0 {
		cfg.MigrationRunningRetries = defaultMigrationRunningRetries
	}

	if cfg.MigrationReschedules <= 0 {
		cfg.MigrationReschedules = defaultMigrationReschedules
	}

	if cfg.CancellationWindowDays <= 0 {
		cfg.CancellationWindowDays = defaultCancellationWindowDays
	}

	if cfg.OrderLockTTL <= 0 {
		cfg.OrderLockTTL = defaultOrderLockTTL
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.MarketplaceURL == "" {
		return nil, fmt.Errorf("marketplace API URL must be provided")
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("licensing backend API URL must be provided")
	}

	if len(cfg.ProductIDs) == 0 {
		return nil, fmt.Errorf("at least one product id must be provided")
	}

	return cfg, nil
}

// HasProduct reports whether the product is served by this instance.
func (c *Config) HasProduct(productID string) bool {
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getList(lookup envLookup, key string) []string {
	v, _ := lookup(key)
	return splitList(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
