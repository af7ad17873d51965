// Package config loads service configuration from config.yaml and
// DAIRYFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"dairyflow/internal/core/tenant"
	"dairyflow/pkg/logger"
)

// StorageDriver selects the bill store.
type StorageDriver string

const (
	DriverPostgres StorageDriver = "postgres"
	DriverMemory   StorageDriver = "memory"
)

type Configuration struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	Server  ServerConfig  `mapstructure:"server" validate:"required"`
	Storage StorageConfig `mapstructure:"storage" validate:"required"`
	Meta    MetaDBConfig  `mapstructure:"meta"`
	Tenants TenantsConfig `mapstructure:"tenants"`
	Auth    AuthConfig    `mapstructure:"auth" validate:"required"`
	Billing BillingConfig `mapstructure:"billing" validate:"required"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`
	Demo    DemoConfig    `mapstructure:"demo"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Env     string `mapstructure:"env" validate:"oneof=development staging production"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver StorageDriver `mapstructure:"driver" validate:"oneof=postgres memory"`
}

// MetaDBConfig points at the database holding the tenants table.
type MetaDBConfig struct {
	URL string `mapstructure:"url"`
}

type TenantsConfig struct {
	DBUser          string        `mapstructure:"db_user"`
	DBPassword      string        `mapstructure:"db_password"`
	SSLMode         string        `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxPools        int           `mapstructure:"max_pools" validate:"gte=0"`
	MaxConnsPerPool int32         `mapstructure:"max_conns_per_pool" validate:"gte=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	GatewayKeyHash string        `mapstructure:"gateway_key_hash"`
}

type BillingConfig struct {
	BillPrefix     string        `mapstructure:"bill_prefix" validate:"required,alphanum,max=8"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	AuditPaid      bool          `mapstructure:"audit_paid"`
}

type WorkerConfig struct {
	// GenerateDay is the day of month on which the previous month is billed.
	GenerateDay int           `mapstructure:"generate_day" validate:"gte=1,lte=28"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1"`
	OutboxBatch int           `mapstructure:"outbox_batch" validate:"gte=1"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// DemoConfig seeds the in-memory store.
type DemoConfig struct {
	TenantID string       `mapstructure:"tenant_id"`
	Clients  []DemoClient `mapstructure:"clients" validate:"dive"`
}

type DemoClient struct {
	Name          string `mapstructure:"name" validate:"required"`
	DailyQuantity string `mapstructure:"daily_quantity" validate:"required,numeric"`
	Rate          string `mapstructure:"rate" validate:"required,numeric"`
}

// NewConfig reads config.yaml from the usual locations, then the environment.
func NewConfig() (*Configuration, error) {
	return Load("")
}

// Load reads the given file, or searches for config.yaml when path is empty.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dairyflow")
	}

	v.SetEnvPrefix("DAIRYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dairyflow")
	v.SetDefault("app.env", "development")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("storage.driver", string(DriverPostgres))
	v.SetDefault("tenants.ssl_mode", "disable")
	v.SetDefault("tenants.max_pools", 100)
	v.SetDefault("tenants.max_conns_per_pool", 8)
	v.SetDefault("tenants.idle_timeout", 30*time.Minute)
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.issuer", "dairyflow")
	v.SetDefault("billing.bill_prefix", "MLK")
	v.SetDefault("billing.idempotency_ttl", 24*time.Hour)
	v.SetDefault("worker.generate_day", 1)
	v.SetDefault("worker.interval", time.Hour)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.outbox_batch", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("demo.tenant_id", "demo")
}

// Validate checks struct tags and cross-field rules.
func (c Configuration) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == DriverPostgres {
		if c.Meta.URL == "" {
			return errors.New("invalid config: meta.url is required for the postgres driver")
		}
		if c.Tenants.DBUser == "" {
			return errors.New("invalid config: tenants.db_user is required for the postgres driver")
		}
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c Configuration) IsDevelopment() bool { return c.App.Env == "development" }

// Logger returns the logger configuration.
func (c Configuration) Logger() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.IsDevelopment(),
	}
}

// TenantManager returns pool manager settings layered over the defaults.
func (c Configuration) TenantManager() tenant.ManagerConfig {
	mc := tenant.DefaultManagerConfig()
	mc.DBUser = c.Tenants.DBUser
	mc.DBPassword = c.Tenants.DBPassword
	mc.SSLMode = c.Tenants.SSLMode
	if c.Tenants.MaxPools > 0 {
		mc.MaxTotalPools = c.Tenants.MaxPools
	}
	if c.Tenants.MaxConnsPerPool > 0 {
		mc.MaxConnsPerTenant = c.Tenants.MaxConnsPerPool
	}
	if c.Tenants.IdleTimeout > 0 {
		mc.PoolIdleTimeout = c.Tenants.IdleTimeout
	}
	return mc
}
