package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	APNs      APNsConfig      `yaml:"apns"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// StoreConfig selects and configures the key-value backend
type StoreConfig struct {
	Driver   string         `yaml:"driver" validate:"oneof=memory postgres badger redis dynamodb"`
	Postgres DatabaseConfig `yaml:"postgres"`
	Badger   BadgerConfig   `yaml:"badger"`
	Redis    RedisConfig    `yaml:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// BadgerConfig holds embedded store configuration
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds redis configuration, shared by the store and the match bus
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// DynamoDBConfig holds AWS configuration for the DynamoDB backend
type DynamoDBConfig struct {
	Region      string `yaml:"region"`
	Table       string `yaml:"table"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Endpoint    string `yaml:"endpoint"` // DynamoDB Local or another compatible endpoint
	CreateTable bool   `yaml:"create_table"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret  string `yaml:"secret" validate:"required,min=16"`
	TTLDays int    `yaml:"ttl_days" validate:"min=1"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// CatalogConfig holds the external movie database settings
type CatalogConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"omitempty,url"`
	ImageBaseURL string        `yaml:"image_base_url" validate:"omitempty,url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RateLimitConfig holds per-IP limits for the API
type RateLimitConfig struct {
	Requests int           `yaml:"requests" validate:"min=0"`
	Window   time.Duration `yaml:"window"`
}

// APNsConfig holds push notification settings; empty KeyPath disables push
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id" validate:"required_with=KeyPath"`
	TeamID     string `yaml:"team_id" validate:"required_with=KeyPath"`
	Topic      string `yaml:"topic" validate:"required_with=KeyPath"`
	Production bool   `yaml:"production"`
}

// NotifyConfig holds cross-instance notification settings
type NotifyConfig struct {
	RedisChannel string `yaml:"redis_channel"`
}

// Default returns a configuration suitable for local development
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  []string{"*"},
		},
		Store: StoreConfig{
			Driver: "memory",
			Postgres: DatabaseConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
			Badger:   BadgerConfig{Path: "data/kv"},
			Redis:    RedisConfig{Addr: "localhost:6379", Namespace: "watchmatch:"},
			DynamoDB: DynamoDBConfig{Region: "us-east-1", Table: "watch_match_kv"},
		},
		JWT: JWTConfig{TTLDays: 365},
		Log: LogConfig{Level: "info", Format: "console"},
		Catalog: CatalogConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
			Timeout:      5 * time.Second,
		},
		RateLimit: RateLimitConfig{Requests: 120, Window: time.Minute},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and driver-specific requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.Postgres.DBName == "" {
			return fmt.Errorf("invalid config: store.postgres.dbname is required")
		}
	case "badger":
		if c.Store.Badger.Path == "" {
			return fmt.Errorf("invalid config: store.badger.path is required")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("invalid config: store.redis.addr is required")
		}
	case "dynamodb":
		if c.Store.DynamoDB.Table == "" || c.Store.DynamoDB.Region == "" {
			return fmt.Errorf("invalid config: store.dynamodb.table and region are required")
		}
	}

	if c.Notify.RedisChannel != "" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("invalid config: notify.redis_channel needs store.redis.addr")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
