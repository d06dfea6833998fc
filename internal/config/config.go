package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary    Primary          `koanf:"primary"`
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Redis      RedisConfig      `koanf:"redis"`
	Logger     LoggerConfig     `koanf:"logger"`
	Worker     WorkerConfig     `koanf:"worker"`
	Runner     RunnerConfig     `koanf:"runner"`
	Settlement SettlementConfig `koanf:"settlement"`
	Partners   PartnersConfig   `koanf:"partners"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
	// Store selects the persistence backend: "postgres" or "memory".
	Store string `koanf:"store" validate:"required,oneof=postgres memory"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Name            string        `koanf:"name"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// RedisConfig is optional; an empty URL disables events and the deferred queue.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type WorkerConfig struct {
	Interval    time.Duration `koanf:"interval" validate:"required"`
	BatchSize   int           `koanf:"batch_size" validate:"required"`
	MaxAttempts int           `koanf:"max_attempts" validate:"required"`
}

type RunnerConfig struct {
	// MaxInFlight caps concurrently running integration calls; 0 means unlimited.
	MaxInFlight int `koanf:"max_in_flight" validate:"min=0"`
}

type SettlementConfig struct {
	Deadline      time.Duration `koanf:"deadline" validate:"required"`
	RetryDeferred bool          `koanf:"retry_deferred"`
	// WriteTimeout bounds recording a decision once partners have answered.
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
}

type PartnersConfig struct {
	VehicleRegistry  PartnerConfig `koanf:"vehicle_registry"`
	PaymentProcessor PartnerConfig `koanf:"payment_processor"`
	LossHistory      PartnerConfig `koanf:"loss_history"`
	PolicyRating     PartnerConfig `koanf:"policy_rating"`
}

// PartnerConfig tunes one integration gateway.
type PartnerConfig struct {
	BaseURL              string        `koanf:"base_url" validate:"required,url"`
	ConnectTimeout       time.Duration `koanf:"connect_timeout" validate:"required"`
	ReadTimeout          time.Duration `koanf:"read_timeout" validate:"required"`
	MaxAttempts          int           `koanf:"max_attempts" validate:"required,min=1"`
	BaseDelay            time.Duration `koanf:"base_delay" validate:"required"`
	Multiplier           float64       `koanf:"multiplier" validate:"required,gte=1"`
	MaxBackoff           time.Duration `koanf:"max_backoff" validate:"required"`
	Jitter               time.Duration `koanf:"jitter"`
	FailureRateThreshold float64       `koanf:"failure_rate_threshold" validate:"required,gt=0,lte=1"`
	WindowSize           int           `koanf:"window_size" validate:"required,min=1"`
	MinimumCalls         int           `koanf:"minimum_calls" validate:"required,min=1"`
	Cooldown             time.Duration `koanf:"cooldown" validate:"required"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	values := map[string]any{
		"primary.env":                 "development",
		"primary.store":               "postgres",
		"server.port":                 "8080",
		"server.read_timeout":         "15s",
		"server.write_timeout":        "30s",
		"server.idle_timeout":         "60s",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"redis.pool_size":             10,
		"redis.dial_timeout":          "5s",
		"redis.read_timeout":          "3s",
		"redis.write_timeout":         "3s",
		"logger.level":                "info",
		"logger.format":               "json",
		"worker.interval":             "30s",
		"worker.batch_size":           20,
		"worker.max_attempts":         5,
		"runner.max_in_flight":        0,
		"settlement.deadline":         "20s",
		"settlement.retry_deferred":   false,
		"settlement.write_timeout":    "5s",
	}
	for _, partner := range []string{"vehicle_registry", "payment_processor", "loss_history", "policy_rating"} {
		prefix := "partners." + partner + "."
		values[prefix+"connect_timeout"] = "2s"
		values[prefix+"read_timeout"] = "5s"
		values[prefix+"max_attempts"] = 3
		values[prefix+"base_delay"] = "200ms"
		values[prefix+"multiplier"] = 2.0
		values[prefix+"max_backoff"] = "2s"
		values[prefix+"jitter"] = "100ms"
		values[prefix+"failure_rate_threshold"] = 0.5
		values[prefix+"window_size"] = 20
		values[prefix+"minimum_calls"] = 10
		values[prefix+"cooldown"] = "30s"
	}
	return values
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("SETTLEMENT_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "SETTLEMENT_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
