package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Spread    SpreadConfig    `mapstructure:"spread"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SnapshotConfig controls aggregate snapshot cadence.
type SnapshotConfig struct {
	EveryNEvents int64 `mapstructure:"every_n_events"`
}

// RatesConfig controls the exchange-rate registry.
type RatesConfig struct {
	AnchorCurrency  string               `mapstructure:"anchor_currency"`
	CacheTTL        time.Duration        `mapstructure:"cache_ttl"`
	MaxAge          time.Duration        `mapstructure:"max_age"`
	FetchTimeout    time.Duration        `mapstructure:"fetch_timeout"`
	RefreshInterval string               `mapstructure:"refresh_interval"` // cron spec
	Aggregation     string               `mapstructure:"aggregation"`      // median, priority
	Providers       []RateProviderConfig `mapstructure:"providers"`
}

// RateProviderConfig declares one upstream rate source. Order in the list is
// the priority order.
type RateProviderConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// RoutingConfig controls the order routing saga.
type RoutingConfig struct {
	MaxPriceImpact   float64       `mapstructure:"max_price_impact"`
	MinPoolLiquidity float64       `mapstructure:"min_pool_liquidity"`
	MinSplitNotional float64       `mapstructure:"min_split_notional"`
	MaxRoutes        int           `mapstructure:"max_routes"`
	DecisionBudget   time.Duration `mapstructure:"decision_budget"`
}

// SpreadConfig controls the spread management saga.
type SpreadConfig struct {
	MinSpreadBps      float64 `mapstructure:"min_spread_bps"`
	MaxSpreadBps      float64 `mapstructure:"max_spread_bps"`
	DefaultSpreadBps  float64 `mapstructure:"default_spread_bps"`
	ModerateImbalance float64 `mapstructure:"moderate_imbalance"`
	CriticalImbalance float64 `mapstructure:"critical_imbalance"`
}

// LedgerConfig controls account command handling.
type LedgerConfig struct {
	MaxRetries     int   `mapstructure:"max_retries"`
	HighValueMinor int64 `mapstructure:"high_value_minor"` // risk-check threshold, minor units
	BlockOverMinor int64 `mapstructure:"block_over_minor"` // hard compliance block, minor units
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LXC (Ledger eXchange Core).
// Nested keys use underscore: LXC_DATABASE_HOST, LXC_RATES_CACHE_TTL, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ledger_core")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("snapshots.every_n_events", 50)
	v.SetDefault("rates.anchor_currency", "USD")
	v.SetDefault("rates.cache_ttl", "15m")
	v.SetDefault("rates.max_age", "60m")
	v.SetDefault("rates.fetch_timeout", "5s")
	v.SetDefault("rates.refresh_interval", "@every 10m")
	v.SetDefault("rates.aggregation", "median")
	v.SetDefault("routing.max_price_impact", 0.05)
	v.SetDefault("routing.min_pool_liquidity", 1000)
	v.SetDefault("routing.min_split_notional", 100)
	v.SetDefault("routing.max_routes", 5)
	v.SetDefault("routing.decision_budget", "3s")
	v.SetDefault("spread.min_spread_bps", 10)
	v.SetDefault("spread.max_spread_bps", 500)
	v.SetDefault("spread.default_spread_bps", 30)
	v.SetDefault("spread.moderate_imbalance", 0.15)
	v.SetDefault("spread.critical_imbalance", 0.35)
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.high_value_minor", 1000000)
	v.SetDefault("ledger.block_over_minor", 100000000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LXC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("LXC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
