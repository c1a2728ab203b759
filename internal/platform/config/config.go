package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, grouped by concern.
type Config struct {
	Server         Server
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Release        ReleaseConfig
	Reconciliation ReconciliationConfig
	Auth           AuthConfig
	LogLevel       string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AdminToken      string

	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
}

// DatabaseConfig selects postgres when URL is set; otherwise in-memory stores are used.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig enables the cached reverse trust index when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IndexTTL     time.Duration
}

// KafkaConfig enables the Kafka release trigger and audit relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers       []string
	ReleaseTopic  string
	AuditTopic    string
	ConsumerGroup string
}

type ReleaseConfig struct {
	MaxParallel     int
	ContentAPIURL   string
	ContentAPIToken string
	CallTimeout     time.Duration
}

type ReconciliationConfig struct {
	Interval  time.Duration
	BatchSize int
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            getEnv("HEIRLOOM_ADDR", ":8080"),
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:      getEnv("ADMIN_API_TOKEN", "dev-admin-token"),
			CORSOrigins:     getList("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			IndexTTL:     getDuration("TRUST_INDEX_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       getList("KAFKA_BROKERS"),
			ReleaseTopic:  getEnv("KAFKA_RELEASE_TOPIC", "heirloom.release.triggers"),
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "heirloom.audit.events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "heirloom-release"),
		},
		Release: ReleaseConfig{
			MaxParallel:     getInt("RELEASE_MAX_PARALLEL", 8),
			ContentAPIURL:   os.Getenv("CONTENT_API_URL"),
			ContentAPIToken: os.Getenv("CONTENT_API_TOKEN"),
			CallTimeout:     getDuration("CONTENT_API_TIMEOUT", 10*time.Second),
		},
		Reconciliation: ReconciliationConfig{
			Interval:  getDuration("RECONCILE_INTERVAL", time.Hour),
			BatchSize: getInt("RECONCILE_BATCH_SIZE", 500),
		},
		Auth: AuthConfig{
			// Development default; must be overridden in production.
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        getEnv("JWT_ISSUER", "heirloom"),
			Audience:      getEnv("JWT_AUDIENCE", "heirloom-api"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
