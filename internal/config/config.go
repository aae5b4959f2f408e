// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ストアドライバ
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`

	// Token
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// Messaging
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`

	// Worker
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Server
	ServerPort string `yaml:"server_port"`

	// CORS
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`
}

// Load は設定を読み込む。
// カレントディレクトリの .env を環境変数へ取り込み、CONFIG_FILE が指定されていれば
// YAMLファイルを読み込んだうえで、設定済みの環境変数で上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	cfg.setDefaults()

	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getEnvString("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnvString("JWT_SECRET", cfg.JWTSecret)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.AMQPURL = getEnvString("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnvString("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.LogLevel = getEnvString("LOG_LEVEL", cfg.LogLevel)
	cfg.ServerPort = getEnvString("SERVER_PORT", cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsesMemoryStore はインメモリストアで起動するかを返す。
func (c *Config) UsesMemoryStore() bool {
	return c.StoreDriver == StoreDriverMemory
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.StoreDriver == "" {
		c.StoreDriver = StoreDriverPostgres
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 60 * 24 * time.Hour
	}
	if c.AMQPExchange == "" {
		c.AMQPExchange = "conduit"
	}
	if c.ReconcileInterval == 0 {
		c.ReconcileInterval = time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.CORSAllowedOrigin == "" {
		c.CORSAllowedOrigin = "*"
	}
}

func (c *Config) validate() error {
	var missing []string

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %q", c.StoreDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive: %v", c.TokenTTL)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
