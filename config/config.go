package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

const (
	LedgerMongo    = "mongo"
	LedgerPostgres = "postgres"
	LedgerMemory   = "memory"

	OracleSkip  = "skip"
	OracleFixed = "fixed"

	NotifyLog   = "log"
	NotifyKafka = "kafka"
)

type Config struct {
	Port     string         `mapstructure:"port"`
	LogLevel string         `mapstructure:"log_level"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Keys     KeyConfig      `mapstructure:"keys"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig: an empty URL keeps consumed-message records in process memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LedgerConfig struct {
	Driver string `mapstructure:"driver"`
}

type TransferConfig struct {
	ValidityWindow      time.Duration `mapstructure:"validity_window"`
	PriceDriftTolerance string        `mapstructure:"price_drift_tolerance"`
	QuoteTimeout        time.Duration `mapstructure:"quote_timeout"`
	ReplayProtection    bool          `mapstructure:"replay_protection"`
	SeedBalanceMin      string        `mapstructure:"seed_balance_min"`
	SeedBalanceMax      string        `mapstructure:"seed_balance_max"`
}

type OracleConfig struct {
	Driver      string        `mapstructure:"driver"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryPause  time.Duration `mapstructure:"retry_pause"`
	FixedRate   string        `mapstructure:"fixed_rate"`
}

type NotifyConfig struct {
	Driver      string        `mapstructure:"driver"`
	Brokers     []string      `mapstructure:"brokers"`
	Topic       string        `mapstructure:"topic"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxInFlight int           `mapstructure:"max_in_flight"`
}

type KeyConfig struct {
	Scheme string `mapstructure:"scheme"`
	Path   string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "mock_wallet")
	v.SetDefault("postgres.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("ledger.driver", LedgerMongo)
	v.SetDefault("transfer.validity_window", 30*time.Second)
	v.SetDefault("transfer.price_drift_tolerance", "0.01")
	v.SetDefault("transfer.quote_timeout", 5*time.Second)
	v.SetDefault("transfer.replay_protection", true)
	v.SetDefault("transfer.seed_balance_min", "1.00")
	v.SetDefault("transfer.seed_balance_max", "10.00")
	v.SetDefault("oracle.driver", OracleSkip)
	v.SetDefault("oracle.url", "https://api.skip.build")
	v.SetDefault("oracle.timeout", 5*time.Second)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.retry_pause", 250*time.Millisecond)
	v.SetDefault("oracle.fixed_rate", "2000")
	v.SetDefault("notify.driver", NotifyLog)
	v.SetDefault("notify.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.topic", "wallet_notifications")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.max_in_flight", 64)
	v.SetDefault("keys.scheme", "seed_prefix")
	v.SetDefault("keys.path", utils.ETH_DEFAULT_PATH)
}

// Load reads path (YAML) over the defaults. A .env file in the working
// directory is loaded first when present; environment variables win over YAML.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// ENV 覆盖 YAML
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Transfer.ValidityWindow <= 0 {
		return fmt.Errorf("transfer.validity_window must be positive")
	}
	if c.Transfer.QuoteTimeout <= 0 {
		return fmt.Errorf("transfer.quote_timeout must be positive")
	}
	tol, err := c.Transfer.Tolerance()
	if err != nil {
		return err
	}
	if !tol.IsPositive() {
		return fmt.Errorf("transfer.price_drift_tolerance must be positive")
	}
	lo, hi, err := c.Transfer.SeedRange()
	if err != nil {
		return err
	}
	if lo.IsNegative() || lo.GreaterThan(hi) {
		return fmt.Errorf("transfer.seed_balance_min must be within [0, seed_balance_max]")
	}

	switch c.Ledger.Driver {
	case LedgerMongo, LedgerMemory:
	case LedgerPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres.url must be set for the postgres ledger")
		}
	default:
		return fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver)
	}

	switch c.Oracle.Driver {
	case OracleSkip:
	case OracleFixed:
		if _, err := c.Oracle.Rate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown oracle.driver %q", c.Oracle.Driver)
	}

	switch c.Notify.Driver {
	case NotifyLog:
	case NotifyKafka:
		if len(c.Notify.Brokers) == 0 {
			return fmt.Errorf("notify.brokers must be set for the kafka notifier")
		}
	default:
		return fmt.Errorf("unknown notify.driver %q", c.Notify.Driver)
	}
	return nil
}

// Tolerance parses price_drift_tolerance, a fraction (0.01 = 1%).
func (c TransferConfig) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.PriceDriftTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid transfer.price_drift_tolerance: %w", err)
	}
	return d, nil
}

func (c TransferConfig) SeedRange() (decimal.Decimal, decimal.Decimal, error) {
	lo, err := decimal.NewFromString(c.SeedBalanceMin)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid transfer.seed_balance_min: %w", err)
	}
	hi, err := decimal.NewFromString(c.SeedBalanceMax)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid transfer.seed_balance_max: %w", err)
	}
	return lo, hi, nil
}

// Rate parses fixed_rate (USD per ETH).
func (c OracleConfig) Rate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.FixedRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid oracle.fixed_rate: %w", err)
	}
	return d, nil
}
