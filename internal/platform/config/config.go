// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	liststr "lifeline/pkg/platform/strings"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// ErrMissingAdminSecret is returned when ADMIN_SECRET is unset.
var ErrMissingAdminSecret = errors.New("ADMIN_SECRET must be set")

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	AdminSecret       string
	ShutdownTimeout   time.Duration
	MirrorRepairQueue int
	Store             StoreConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
}

// StoreConfig selects and locates the persistence backend.
type StoreConfig struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
}

// RedisConfig configures the pub/sub fan-out. Empty URL disables it.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	ClientID    string
	Timeout     time.Duration
	Partitions  int32
	Replication int16
}

// FromEnv builds a Server config from environment variables, loading a .env
// file first when one exists.
func FromEnv() (Server, error) {
	_ = godotenv.Load()
	return fromLookup(os.Getenv)
}

func fromLookup(get func(string) string) (Server, error) {
	env := func(key, fallback string) string {
		if v := get(key); v != "" {
			return v
		}
		return fallback
	}

	addr := get("LIFELINE_ADDR")
	if addr == "" {
		if port := get("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":4000"
		}
	}

	cfg := Server{
		Addr:            addr,
		AdminSecret:     get("ADMIN_SECRET"),
		ShutdownTimeout: 10 * time.Second,
		Store: StoreConfig{
			Driver:        env("STORE_DRIVER", DriverMemory),
			DatabaseURL:   get("DATABASE_URL"),
			MongoURI:      get("MONGODB_URI"),
			MongoDatabase: env("MONGODB_DATABASE", "lifeline"),
		},
		Redis: RedisConfig{
			URL:          get("REDIS_URL"),
			Channel:      env("EVENTS_CHANNEL", "lifeline:events"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:     liststr.SplitList(get("KAFKA_BROKERS")),
			Topic:       env("KAFKA_TOPIC", "lifeline.events"),
			ClientID:    "lifeline",
			Timeout:     10 * time.Second,
			Partitions:  3,
			Replication: 1,
		},
	}

	if cfg.AdminSecret == "" {
		return Server{}, ErrMissingAdminSecret
	}

	queue, err := strconv.Atoi(env("MIRROR_REPAIR_QUEUE", "128"))
	if err != nil || queue <= 0 {
		return Server{}, fmt.Errorf("MIRROR_REPAIR_QUEUE must be a positive integer, got %q", get("MIRROR_REPAIR_QUEUE"))
	}
	cfg.MirrorRepairQueue = queue

	switch cfg.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.Store.DatabaseURL == "" {
			return Server{}, errors.New("DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if cfg.Store.MongoURI == "" {
			return Server{}, errors.New("MONGODB_URI is required for the mongo store")
		}
	default:
		return Server{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	return cfg, nil
}
