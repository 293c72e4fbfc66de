package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Storage     StorageConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Checkout    CheckoutConfig
	Carts       CartsConfig
	Events      EventsConfig
	Admin       AdminConfig
}

// StorageConfig selects the backends. Carts, users and sessions always live
// in the key-value store; orders and products can move to postgres.
type StorageConfig struct {
	Backend         string // memory | sqlite | redis
	SQLitePath      string
	OrderBackend    string // kv | postgres
	CatalogBackend  string // kv | postgres
	CatalogCache    bool
	CatalogCacheTTL time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type CheckoutConfig struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	Currency              string
	DecrementStock        bool
}

// CartsConfig bounds the carts kept in memory. Carts are persisted on every
// change, so these only trade memory for reload work.
type CartsConfig struct {
	CacheSize int
	IdleTTL   time.Duration
}

// EventsConfig points order events at a RabbitMQ queue. An empty URL turns
// publishing off.
type EventsConfig struct {
	RabbitMQURL     string
	Queue           string
	ChannelPoolSize int
}

func (e EventsConfig) Enabled() bool {
	return e.RabbitMQURL != ""
}

// AdminConfig seeds an admin account at startup when both fields are set
type AdminConfig struct {
	Email    string
	Password string
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) UsesPostgres() bool {
	return c.Storage.OrderBackend == "postgres" || c.Storage.CatalogBackend == "postgres"
}

func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == "redis" || c.Storage.CatalogCache
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORAGE_BACKEND", "memory")
	viper.SetDefault("ORDER_BACKEND", "kv")
	viper.SetDefault("CATALOG_BACKEND", "kv")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Storage: StorageConfig{
			Backend:        getEnvOrViper("STORAGE_BACKEND", "memory"),
			SQLitePath:     getEnvOrViper("SQLITE_PATH", "storefront.db"),
			OrderBackend:   getEnvOrViper("ORDER_BACKEND", "kv"),
			CatalogBackend: getEnvOrViper("CATALOG_BACKEND", "kv"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "storefront"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Checkout: CheckoutConfig{
			Currency: getEnvOrViper("CURRENCY", "USD"),
		},
		Events: EventsConfig{
			RabbitMQURL: getEnvOrViper("ORDER_EVENTS_URL", ""),
			Queue:       getEnvOrViper("ORDER_EVENTS_QUEUE", "storefront.orders"),
		},
		Admin: AdminConfig{
			Email:    getEnvOrViper("SEED_ADMIN_EMAIL", ""),
			Password: getEnvOrViper("SEED_ADMIN_PASSWORD", ""),
		},
	}

	var err error
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Events.ChannelPoolSize, err = getInt("ORDER_EVENTS_CHANNELS", 5); err != nil {
		return nil, err
	}
	if cfg.Storage.CatalogCache, err = getBool("CATALOG_CACHE", false); err != nil {
		return nil, err
	}
	if cfg.Checkout.DecrementStock, err = getBool("DECREMENT_STOCK", true); err != nil {
		return nil, err
	}
	if cfg.Carts.CacheSize, err = getInt("CART_CACHE_SIZE", 10000); err != nil {
		return nil, err
	}
	idle := getEnvOrViper("CART_IDLE_TTL", "30m")
	if cfg.Carts.IdleTTL, err = time.ParseDuration(idle); err != nil {
		return nil, fmt.Errorf("CART_IDLE_TTL: invalid duration %q", idle)
	}
	ttl := getEnvOrViper("CATALOG_CACHE_TTL", "5m")
	if cfg.Storage.CatalogCacheTTL, err = time.ParseDuration(ttl); err != nil {
		return nil, fmt.Errorf("CATALOG_CACHE_TTL: invalid duration %q", ttl)
	}

	if cfg.Checkout.TaxRate, err = getDecimal("TAX_RATE", "0.08"); err != nil {
		return nil, err
	}
	if cfg.Checkout.FreeShippingThreshold, err = getDecimal("FREE_SHIPPING_THRESHOLD", "50"); err != nil {
		return nil, err
	}
	if cfg.Checkout.FlatShippingFee, err = getDecimal("FLAT_SHIPPING_FEE", "9.99"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory, sqlite or redis, got %q", c.Storage.Backend)
	}
	if c.Storage.OrderBackend != "kv" && c.Storage.OrderBackend != "postgres" {
		return fmt.Errorf("ORDER_BACKEND must be kv or postgres, got %q", c.Storage.OrderBackend)
	}
	if c.Storage.CatalogBackend != "kv" && c.Storage.CatalogBackend != "postgres" {
		return fmt.Errorf("CATALOG_BACKEND must be kv or postgres, got %q", c.Storage.CatalogBackend)
	}
	if c.Checkout.TaxRate.IsNegative() {
		return fmt.Errorf("TAX_RATE must not be negative")
	}
	if c.Checkout.FlatShippingFee.IsNegative() || c.Checkout.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("shipping settings must not be negative")
	}
	if c.Carts.CacheSize < 1 || c.Carts.IdleTTL <= 0 {
		return fmt.Errorf("CART_CACHE_SIZE and CART_IDLE_TTL must be positive")
	}
	if c.Events.Enabled() && c.Events.ChannelPoolSize < 1 {
		return fmt.Errorf("ORDER_EVENTS_CHANNELS must be at least 1")
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		return fmt.Errorf("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnvOrViper(key, strconv.Itoa(defaultValue))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := getEnvOrViper(key, strconv.FormatBool(defaultValue))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, raw)
	}
	return b, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	raw := getEnvOrViper(key, defaultValue)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	return d, nil
}
