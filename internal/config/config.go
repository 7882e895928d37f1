// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Storage drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting the service reads at startup.
type Config struct {
	AppPort   string
	JWTSecret string
	TokenTTL  time.Duration

	StorageDriver string
	DataDir       string // json driver only
	DatabaseDSN   string // sqlite and postgres drivers

	RabbitMQURL      string // empty disables event publishing
	RabbitMQExchange string
	RabbitMQQueue    string

	LogLevel  string
	LogPretty bool

	PinHashCost          int
	PinAttemptsPerMinute int
	PinAttemptBurst      int
	StrictTransitions    bool
}

// Load reads .env (if present) and the environment through viper.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("STORAGE_DRIVER", DriverJSON)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "harvestlink.orders")
	v.SetDefault("RABBITMQ_QUEUE", "order_events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("PIN_HASH_COST", bcrypt.DefaultCost)
	v.SetDefault("PIN_ATTEMPTS_PER_MINUTE", 5)
	v.SetDefault("PIN_ATTEMPT_BURST", 5)
	v.SetDefault("ORDER_STRICT_TRANSITIONS", true)
}

// FromViper copies settings out of v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:              v.GetString("APP_PORT"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		TokenTTL:             v.GetDuration("TOKEN_TTL"),
		StorageDriver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DataDir:              v.GetString("DATA_DIR"),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:     v.GetString("RABBITMQ_EXCHANGE"),
		RabbitMQQueue:        v.GetString("RABBITMQ_QUEUE"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogPretty:            v.GetBool("LOG_PRETTY"),
		PinHashCost:          v.GetInt("PIN_HASH_COST"),
		PinAttemptsPerMinute: v.GetInt("PIN_ATTEMPTS_PER_MINUTE"),
		PinAttemptBurst:      v.GetInt("PIN_ATTEMPT_BURST"),
		StrictTransitions:    v.GetBool("ORDER_STRICT_TRANSITIONS"),
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	switch c.StorageDriver {
	case DriverJSON:
		if c.DataDir == "" {
			errs = append(errs, errors.New("DATA_DIR is required for the json driver"))
		}
	case DriverSQLite, DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for the %s driver", c.StorageDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.PinHashCost < bcrypt.MinCost || c.PinHashCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("PIN_HASH_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}
