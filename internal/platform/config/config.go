package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "smartid/pkg/platform/strings"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// Config is the full process configuration.
type Config struct {
	Server   Server
	Identity Identity
	Storage  Storage
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Auth     Auth
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Identity holds the record policy knobs.
type Identity struct {
	MinTransferInterval uint64
	DisposePolicy       string
	// BlockPerTx advances the ledger by one block after every committed mutation.
	BlockPerTx bool
}

type Storage struct {
	Backend string
}

type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit outbox relay. An empty broker list disables it.
type Kafka struct {
	Brokers        []string
	AuditTopic     string
	RelayInterval  time.Duration
	RelayBatchSize int
}

type Auth struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	AdminToken    string
}

type Log struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Server: Server{
			Addr:            envOr("SMARTID_ADDR", ":8080"),
			ReadTimeout:     durationEnv("HTTP_READ_TIMEOUT", 15*time.Second, &errs),
			WriteTimeout:    durationEnv("HTTP_WRITE_TIMEOUT", 15*time.Second, &errs),
			ShutdownTimeout: durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		},
		Identity: Identity{
			MinTransferInterval: uintEnv("MIN_TRANSFER_INTERVAL", 20, &errs),
			DisposePolicy:       envOr("DISPOSE_POLICY", "controller"),
			BlockPerTx:          boolEnv("BLOCK_PER_TX", false, &errs),
		},
		Storage: Storage{
			Backend: strings.ToLower(envOr("STORAGE_BACKEND", BackendMemory)),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: intEnv("DATABASE_MAX_OPEN_CONNS", 20, &errs),
			MaxIdleConns: intEnv("DATABASE_MAX_IDLE_CONNS", 5, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: Kafka{
			Brokers:        strutil.SplitUnique(os.Getenv("KAFKA_BROKERS"), ","),
			AuditTopic:     envOr("AUDIT_TOPIC", "smartid.audit"),
			RelayInterval:  durationEnv("OUTBOX_RELAY_INTERVAL", time.Second, &errs),
			RelayBatchSize: intEnv("OUTBOX_RELAY_BATCH_SIZE", 100, &errs),
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: envOr("JWT_SIGNING_KEY", defaultJWTSigningKey),
			Issuer:        envOr("JWT_ISSUER", "smartid"),
			Audience:      envOr("JWT_AUDIENCE", "smartid-api"),
			AdminToken:    os.Getenv("ADMIN_TOKEN"),
		},
		Log: Log{
			Level:  strings.ToLower(envOr("LOG_LEVEL", "info")),
			Format: strings.ToLower(envOr("LOG_FORMAT", "json")),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent combinations.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.Identity.DisposePolicy {
	case "controller", "anyone":
	default:
		errs = append(errs, fmt.Errorf("unknown DISPOSE_POLICY %q", c.Identity.DisposePolicy))
	}
	if len(c.Kafka.Brokers) > 0 && c.Storage.Backend != BackendPostgres {
		errs = append(errs, errors.New("KAFKA_BROKERS requires the postgres backend for the audit outbox"))
	}
	if c.Kafka.RelayBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_RELAY_BATCH_SIZE must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// UsesDefaultSigningKey reports whether tokens are signed with the development key.
func (c Config) UsesDefaultSigningKey() bool {
	return c.Auth.JWTSigningKey == defaultJWTSigningKey
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func uintEnv(key string, fallback uint64, errs *[]error) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
