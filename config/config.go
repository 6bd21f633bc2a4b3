package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	StoreType  string `mapstructure:"STORE_TYPE"` // memory, file, sqlite, postgres, mysql
	StoreDSN   string `mapstructure:"STORE_DSN"`
	SealKey    string `mapstructure:"SEAL_KEY"`    // hex, 32 bytes; file store sealing
	AuditStore string `mapstructure:"AUDIT_STORE"` // memory, sqlite, postgres, mysql
	AuditDSN   string `mapstructure:"AUDIT_DSN"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"` // json, console

	Issuer     string `mapstructure:"ISSUER"`
	TOTPDigits int    `mapstructure:"TOTP_DIGITS"`
	TOTPPeriod int    `mapstructure:"TOTP_PERIOD"`
	TOTPSkew   int    `mapstructure:"TOTP_SKEW"`

	SessionTimeout time.Duration `mapstructure:"SESSION_TIMEOUT"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`

	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"` // non-empty switches the limiter to Redis
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("STORE_TYPE", "sqlite")
	viper.SetDefault("STORE_DSN", "authgate.db") // used by the file and database stores
	viper.SetDefault("SEAL_KEY", "")
	viper.SetDefault("AUDIT_STORE", "sqlite")
	viper.SetDefault("AUDIT_DSN", "authgate.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("ISSUER", "TickerSense Admin")
	viper.SetDefault("TOTP_DIGITS", 6)
	viper.SetDefault("TOTP_PERIOD", 30)
	viper.SetDefault("TOTP_SKEW", 2)
	viper.SetDefault("SESSION_TIMEOUT", "30m")
	viper.SetDefault("SWEEP_INTERVAL", "1m")
	viper.SetDefault("RATE_LIMIT_MAX", 5)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("REDIS_ADDR", "")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
