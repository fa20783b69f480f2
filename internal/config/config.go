// Package config loads oxidicomd's configuration from the process
// environment (optionally seeded from a .env file via godotenv, the
// same dependency the teacher connector already declared for this
// purpose but never wired up). Every field maps to one of spec.md's
// configuration keys, plus the ambient keys SPEC_FULL.md adds for
// logging, the admin API, and the optional audit/cache backends.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully resolved configuration for one oxidicomd process.
type Config struct {
	Log       LogConfig
	Listener  ListenerConfig
	SCP       SCPConfig
	Storage   StorageConfig
	AMQP      AMQPConfig
	NATS      NATSConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Metrics   MetricsConfig
	DevSleep  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type ListenerConfig struct {
	Port    int
	Workers int64
}

type SCPConfig struct {
	AET              string
	Strict           bool
	UncompressedOnly bool
	Promiscuous      bool
	MaxPDULength     uint32
}

type StorageConfig struct {
	FilesRoot string
	Workers   int64
}

type AMQPConfig struct {
	Address string
	Queue   string
}

type NATSConfig struct {
	Address          string
	RootSubject      string
	ProgressInterval time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type CacheConfig struct {
	Enabled bool
	Type    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AdminConfig struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads a .env file if present (ignored if absent - this is a
// convenience for local development, not a requirement) and resolves
// Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Listener: ListenerConfig{
			Port:    getEnvInt("listener_port", 11112),
			Workers: int64(getEnvInt("listener_threads", 8)),
		},
		SCP: SCPConfig{
			AET:              getEnv("scp.aet", "ChRIS"),
			Strict:           getEnvBool("scp.strict", false),
			UncompressedOnly: getEnvBool("scp.uncompressed_only", false),
			Promiscuous:      getEnvBool("scp.promiscuous", false),
			MaxPDULength:     uint32(getEnvInt("scp_max_pdu_length", 16384)),
		},
		Storage: StorageConfig{
			FilesRoot: getEnv("files_root", ""),
			Workers:   int64(getEnvInt("STORAGE_WORKERS", getEnvInt("listener_threads", 8))),
		},
		AMQP: AMQPConfig{
			Address: getEnv("amqp_address", ""),
			Queue:   getEnv("queue_name", "main2"),
		},
		NATS: NATSConfig{
			Address:          getEnv("nats_address", ""),
			RootSubject:      getEnv("root_subject", "oxidicom"),
			ProgressInterval: getEnvDuration("progress_interval", time.Nanosecond),
		},
		Database: DatabaseConfig{
			Host:     getEnv("AUDIT_DATABASE_HOST", ""),
			Port:     getEnvInt("AUDIT_DATABASE_PORT", 5432),
			User:     getEnv("AUDIT_DATABASE_USER", "oxidicom"),
			Password: getEnv("AUDIT_DATABASE_PASSWORD", ""),
			DBName:   getEnv("AUDIT_DATABASE_NAME", "oxidicom"),
			SSLMode:  getEnv("AUDIT_DATABASE_SSLMODE", "disable"),
			LogLevel: getEnv("AUDIT_DATABASE_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    getEnv("CACHE_TYPE", "memory"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Admin: AdminConfig{
			ListenAddr:   getEnv("ADMIN_LISTEN_ADDR", ":8081"),
			ReadTimeout:  getEnvDuration("ADMIN_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("ADMIN_WRITE_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "Authorization"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		DevSleep: getEnvDuration("dev_sleep", 0),
	}

	return cfg, nil
}

// Validate rejects configurations oxidicomd cannot run with: an unset
// storage root is the only hard requirement, since every downstream
// publisher (AMQP, NATS, the audit database, Redis) degrades to a
// no-op when left unconfigured.
func (c *Config) Validate() error {
	if c.Storage.FilesRoot == "" {
		return fmt.Errorf("files_root must be set")
	}
	if c.Listener.Port <= 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener_port out of range: %d", c.Listener.Port)
	}
	if c.Listener.Workers <= 0 {
		return fmt.Errorf("listener_threads must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
