package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service. It is built once at
// startup and passed down explicitly.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Hash     HashConfig
}

// AppConfig configures the HTTP server.
type AppConfig struct {
	Host        string `env:"APP_HOST" envDefault:"localhost"`
	Port        string `env:"APP_PORT" envDefault:"8080"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
	RequireAuth bool   `env:"APP_REQUIRE_AUTH" envDefault:"false"` // guard PATCH/DELETE with a bearer token
}

// PostgresConfig configures the users database.
type PostgresConfig struct {
	Host         string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string `env:"POSTGRES_USER" envDefault:"user"`
	Password     string `env:"POSTGRES_PASSWORD" envDefault:"password"`
	DB           string `env:"POSTGRES_DB" envDefault:"users"`
	MaxOpenConns int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"16"`
	MaxIdleConns int    `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"8"`
}

// DSN returns the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DB)
}

// RedisConfig configures the optional search cache.
type RedisConfig struct {
	Enabled      bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host         string `env:"REDIS_HOST" envDefault:"localhost"`
	Port         int    `env:"REDIS_PORT" envDefault:"6379"`
	DB           int    `env:"REDIS_DB" envDefault:"0"`
	Password     string `env:"REDIS_PASSWORD"`
	PoolSize     int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	ExpSecond    int    `env:"REDIS_EXP_SECOND" envDefault:"60"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Expiration returns the cache TTL.
func (c RedisConfig) Expiration() time.Duration {
	return time.Duration(c.ExpSecond) * time.Second
}

// KafkaConfig configures user event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"user-events"`
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// JWTConfig configures the token issuer.
type JWTConfig struct {
	SecretKey string `env:"JWT_SECRET_KEY" envDefault:"my_super_secret_key"`
	ExpSecond int    `env:"JWT_EXP_SECOND" envDefault:"0"` // 0 issues tokens without exp
}

// Expiration returns the token lifetime, zero meaning no expiry.
func (c JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpSecond) * time.Second
}

// HashConfig selects the password hashing scheme for new hashes.
type HashConfig struct {
	Scheme       string `env:"HASH_SCHEME" envDefault:"pbkdf2-sha256"`
	PBKDF2Rounds int    `env:"HASH_PBKDF2_ROUNDS" envDefault:"29000"`
}

// Load reads the dotenv file at path, if any, and parses the environment
// into a Config. Variables already set in the environment win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(path)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
