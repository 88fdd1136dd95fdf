package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Gate      GateConfig      `koanf:"gate"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Reporting ReportingConfig `koanf:"reporting"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// GateConfig tunes the admission path.
type GateConfig struct {
	LockTimeout       time.Duration `koanf:"lock_timeout"`
	AttemptsPerSecond float64       `koanf:"attempts_per_second"`
	AttemptBurst      int           `koanf:"attempt_burst"`
}

// LedgerConfig tunes reservation lifecycle handling.
type LedgerConfig struct {
	// ReservationGrace bounds how long an unfinalized reservation may
	// live before the sweeper reclaims it. Size it to the dialer's call
	// timeout times two.
	ReservationGrace time.Duration `koanf:"reservation_grace"`
	SweepInterval    time.Duration `koanf:"sweep_interval"`
}

type ReportingConfig struct {
	Window   time.Duration `koanf:"window"`
	Interval time.Duration `koanf:"interval"`
}

type TelemetryConfig struct {
	OTLPEndpoint   string  `koanf:"otlp_endpoint"`
	MetricsEnabled bool    `koanf:"metrics_enabled"`
	TraceSampling  float64 `koanf:"trace_sampling" validate:"min=0,max=1"`
}

func defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/callgate?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Gate: GateConfig{
			LockTimeout:  2 * time.Second,
			AttemptBurst: 1,
		},
		Ledger: LedgerConfig{
			ReservationGrace: 10 * time.Minute,
			SweepInterval:    time.Minute,
		},
		Reporting: ReportingConfig{
			Window:   7 * 24 * time.Hour,
			Interval: time.Hour,
		},
		Telemetry: TelemetryConfig{
			MetricsEnabled: true,
			TraceSampling:  0.1,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and CALLGATE_-prefixed environment variables, in that precedence.
func Load() (*Config, error) {
	return LoadFromFile("configs/config.yaml")
}

func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CALLGATE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CALLGATE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
