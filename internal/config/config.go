package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"` // "production" or "development"
}

// GatewayConfig points at the payment gateway function endpoint.
type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	WebhookKey string        `mapstructure:"webhook_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig tunes the change-stream transport.
type RealtimeConfig struct {
	ReconnectBackoff    time.Duration `mapstructure:"reconnect_backoff"`
	MaxReconnectBackoff time.Duration `mapstructure:"max_reconnect_backoff"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables override file values,
	// e.g. server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "coachfit")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("jwt.expiration", "24h")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.environment", "development")
	viper.SetDefault("gateway.timeout", "15s")
	viper.SetDefault("realtime.reconnect_backoff", "1s")
	viper.SetDefault("realtime.max_reconnect_backoff", "30s")
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.fetch_timeout", "10s")

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; env vars and defaults still apply.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
