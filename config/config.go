// Package config loads engine configuration from environment variables
// (and an optional .env file), with typed getters and sane defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every engine-tunable setting.
type Config struct {
	Port        string
	Environment string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Engine   EngineConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type JWTConfig struct {
	Secret string
	Expiry string
}

// AdminConfig gates the admin-only market-create/update routes behind a
// shared-secret PIN rather than full JWT auth.
type AdminConfig struct {
	PIN         string
	IPWhitelist []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// EngineConfig holds the scheduler intervals and the stale-price budget that
// cmd/server wires into the engines, so deployments can retune them without
// a rebuild. The Default* risk fields are loaded but not read by any engine
// package; market.New applies its own per-market defaults (max leverage 20,
// maintenance margin 0.05, taker fee 0.001, maker fee 0.0005).
type EngineConfig struct {
	FundingUpdateInterval  int // seconds; default 60
	ReserveShiftInterval   int // seconds; default 10
	FeeAccrualInterval     int // seconds; default 5
	LiquidationInterval    int // seconds; default 5
	TriggerMonitorInterval int // seconds; default 10
	LimitOrderInterval     int // seconds; default 10
	OHLCVRollupInterval    int // seconds; default 10

	StalePriceBudgetSeconds int // default 30

	DefaultMaxLeverage       string // decimal string, default "100"
	DefaultMaintenanceMargin string // decimal string, default "0.05"
	DefaultTakerFee          string // decimal string, default "0.001"
	DefaultMakerFee          string // decimal string, default "0.0005"
}

// Load reads configuration from the environment, first attempting to load
// a .env file (ignored if absent).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "7999"),
		Environment: getEnv("ENVIRONMENT", "development"),

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "vperp"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: getEnv("JWT_EXPIRY", "24h"),
		},

		Admin: AdminConfig{
			PIN:         getEnv("ADMIN_PIN", ""),
			IPWhitelist: getEnvAsSlice("ADMIN_IP_WHITELIST", []string{"127.0.0.1", "::1"}, ","),
		},

		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}, ","),
		},

		Engine: EngineConfig{
			FundingUpdateInterval:  getEnvAsInt("FUNDING_UPDATE_INTERVAL_SECONDS", 60),
			ReserveShiftInterval:   getEnvAsInt("RESERVE_SHIFT_INTERVAL_SECONDS", 10),
			FeeAccrualInterval:     getEnvAsInt("FEE_ACCRUAL_INTERVAL_SECONDS", 5),
			LiquidationInterval:    getEnvAsInt("LIQUIDATION_INTERVAL_SECONDS", 5),
			TriggerMonitorInterval: getEnvAsInt("TRIGGER_MONITOR_INTERVAL_SECONDS", 10),
			LimitOrderInterval:     getEnvAsInt("LIMIT_ORDER_INTERVAL_SECONDS", 10),
			OHLCVRollupInterval:    getEnvAsInt("OHLCV_ROLLUP_INTERVAL_SECONDS", 10),

			StalePriceBudgetSeconds: getEnvAsInt("STALE_PRICE_BUDGET_SECONDS", 30),

			DefaultMaxLeverage:       getEnv("DEFAULT_MAX_LEVERAGE", "100"),
			DefaultMaintenanceMargin: getEnv("DEFAULT_MAINTENANCE_MARGIN", "0.05"),
			DefaultTakerFee:          getEnv("DEFAULT_TAKER_FEE", "0.001"),
			DefaultMakerFee:          getEnv("DEFAULT_MAKER_FEE", "0.0005"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces production-only required fields.
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Admin.PIN == "" {
			return fmt.Errorf("ADMIN_PIN is required in production")
		}
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	return strings.Split(valueStr, sep)
}
