package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Environment string         `json:"environment"`
	Server      ServerConfig   `json:"server"`
	Database    DatabaseConfig `json:"database"`
	Redis       RedisConfig    `json:"redis"`
	Auth        AuthConfig     `json:"auth"`
	Engine      EngineConfig   `json:"engine"`
}

type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	SSLMode      string        `json:"sslmode"`
	MaxOpenConns int           `json:"max_open_conns"`
	MaxIdleConns int           `json:"max_idle_conns"`
	MaxLifetime  time.Duration `json:"max_lifetime"`
	ReplicaDSNs  []string      `json:"replica_dsns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
	Audience  string `json:"audience"`
}

// EngineConfig tunes the cross-cutting core: idempotency and cache TTLs,
// store bounds, the simulated settlement poll threshold, and FX rates.
type EngineConfig struct {
	IdempotencyTTL        time.Duration              `json:"idempotency_ttl"`
	IdempotencyCapacity   int                        `json:"idempotency_capacity"`
	CacheTTL              time.Duration              `json:"cache_ttl"`
	CacheCapacity         int                        `json:"cache_capacity"`
	StatusPollsToComplete int                        `json:"status_polls_to_complete"`
	MaxBulkFileBytes      int                        `json:"max_bulk_file_bytes"`
	QuoteValidity         time.Duration              `json:"quote_validity"`
	InsuranceCurrency     string                     `json:"insurance_currency"`
	FxRates               map[string]decimal.Decimal `json:"fx_rates"`
}

func defaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "openfinance",
			DBName:       "openfinance",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			MaxLifetime:  time.Hour,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Auth: AuthConfig{
			Issuer:   "openfinance",
			Audience: "tpp",
		},
		Engine: EngineConfig{
			IdempotencyTTL:        24 * time.Hour,
			IdempotencyCapacity:   10000,
			CacheTTL:              30 * time.Second,
			CacheCapacity:         10000,
			StatusPollsToComplete: 2,
			MaxBulkFileBytes:      1 << 20,
			QuoteValidity:         5 * time.Minute,
			InsuranceCurrency:     "AED",
			FxRates: map[string]decimal.Decimal{
				"AED/USD": decimal.NewFromFloat(0.2723),
				"USD/AED": decimal.NewFromFloat(3.6725),
				"AED/EUR": decimal.NewFromFloat(0.2510),
				"EUR/AED": decimal.NewFromFloat(3.9840),
				"AED/GBP": decimal.NewFromFloat(0.2150),
				"GBP/AED": decimal.NewFromFloat(4.6510),
			},
		},
	}
}

// LoadConfig reads CONFIG_PATH (default config.json) over the built-in
// defaults; a missing file is not an error. Secrets come from the
// environment, never the file.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.json"
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}

	if cfg.Auth.JWTSecret == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}

	return cfg, nil
}
