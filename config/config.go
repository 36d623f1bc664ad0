package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"clover" validate:"required"`
	Version            string `env:"APP_VERSION" env-default:"dev"`
	OpsPort            int    `env:"OPS_PORT" env-default:"3005" validate:"min=1,max=65535"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost" validate:"required"`
	DatabasePort                  int           `env:"DB_PORT" env-default:"5432" validate:"min=1,max=65535"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:"postgres" validate:"required"`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover" validate:"required"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0" validate:"min=0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Storage circuit breaker
	BreakerFailureThreshold uint32        `env:"BREAKER_FAILURE_THRESHOLD" env-default:"5" validate:"min=1"`
	BreakerOpenTimeout      time.Duration `env:"BREAKER_OPEN_TIMEOUT" env-default:"10s"`

	// Redis (recommender sink and shared cache)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost" validate:"required"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379" validate:"min=1,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0" validate:"min=0"`

	// Entity cache: local, redis or none
	CacheBackend string        `env:"CACHE_BACKEND" env-default:"local" validate:"oneof=local redis none"`
	CacheTTL     time.Duration `env:"CACHE_TTL" env-default:"10m"`
	CacheMaxSize int           `env:"CACHE_MAX_SIZE" env-default:"10000" validate:"min=1"`

	// Kafka
	KafkaBrokers          []string      `env:"KAFKA_BROKERS" env-default:"localhost:9092" validate:"min=1,dive,required"`
	KafkaTopic            string        `env:"KAFKA_TOPIC" env-default:"analytics-events" validate:"required"`
	KafkaConsumerGroup    string        `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer" validate:"required"`
	KafkaDeadLetterTopic  string        `env:"KAFKA_DEAD_LETTER_TOPIC" env-default:""`
	KafkaCompression      string        `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=snappy gzip lz4 zstd none"`
	KafkaRequiredAcks     int           `env:"KAFKA_REQUIRED_ACKS" env-default:"1" validate:"oneof=-1 0 1"`
	ProcessTimeout        time.Duration `env:"PROCESS_TIMEOUT" env-default:"30s"`
	CounterBucketDuration time.Duration `env:"COUNTER_BUCKET" env-default:"1m"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string `env:"TRACING_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	TracingInsecure bool   `env:"TRACING_INSECURE" env-default:"true"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load binds environment variables onto a Config and validates it
func Load() (Config, error) {
	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to bind config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field rules and cross-field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msg := "invalid config:"
			for _, fe := range verrs {
				msg += fmt.Sprintf("\n • field '%s': rule '%s' expected '%s', got '%v'", fe.StructField(), fe.Tag(), fe.Param(), fe.Value())
			}
			return errors.New(msg)
		}
		return err
	}
	if c.ProcessTimeout <= 0 {
		return errors.New("invalid config: PROCESS_TIMEOUT must be positive")
	}
	if c.CounterBucketDuration <= 0 {
		return errors.New("invalid config: COUNTER_BUCKET must be positive")
	}
	if c.KafkaDeadLetterTopic != "" && c.KafkaDeadLetterTopic == c.KafkaTopic {
		return errors.New("invalid config: KAFKA_DEAD_LETTER_TOPIC must differ from KAFKA_TOPIC")
	}
	return nil
}

func (c Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             uint(c.DatabaseMigrationVersion),
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c Config) Breaker() database.BreakerConfig {
	cfg := database.DefaultBreakerConfig()
	cfg.FailureThreshold = c.BreakerFailureThreshold
	if c.BreakerOpenTimeout > 0 {
		cfg.Timeout = c.BreakerOpenTimeout
	}
	return cfg
}

func (c Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c Config) LocalCache() cache.LocalConfig {
	return cache.LocalConfig{MaxSize: c.CacheMaxSize, TTL: c.CacheTTL}
}

func (c Config) Consumer() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:        c.KafkaBrokers,
		Topic:          c.KafkaTopic,
		ConsumerGroup:  c.KafkaConsumerGroup,
		ProcessTimeout: c.ProcessTimeout,
	}
}

func (c Config) DeadLetter() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaDeadLetterTopic,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c Config) Tracing() exporters.OTLPConfig {
	return exporters.OTLPConfig{
		Endpoint: c.TracingEndpoint,
		Protocol: c.TracingProtocol,
		Insecure: c.TracingInsecure,
	}
}
