package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds process-level configuration. Tags use mapstructure for
// Viper unmarshalling; every field binds to an environment variable of the
// same name.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	BaseURL     string `mapstructure:"BASE_URL"` // external URL magic links point at
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty selects the in-memory login store
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	// SecretKey feeds the token digest key derivation. Must come from the
	// environment in production; the default exists only for local runs.
	SecretKey string `mapstructure:"SECRET_KEY"`

	// MailWebhookURL is the mail-gateway endpoint for magic-link delivery.
	// Empty means deliveries go to the log sender.
	MailWebhookURL   string `mapstructure:"MAIL_WEBHOOK_URL"`
	MailWebhookToken string `mapstructure:"MAIL_WEBHOOK_TOKEN"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	TimeoutMinutes int `mapstructure:"SESSION_TIMEOUT_MIN"`
	ExpiryDays     int `mapstructure:"SESSION_EXPIRY_DAYS"`
	LoginTTLHours  int `mapstructure:"LOGIN_TTL_HOUR"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/entryway/")
	v.AddConfigPath("$HOME/.entryway")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/entryway_dev")
	v.SetDefault("MONGO_DB_NAME", "entryway_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SECRET_KEY", "a_very_secret_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("MAIL_WEBHOOK_URL", "")
	v.SetDefault("MAIL_WEBHOOK_TOKEN", "")
	v.SetDefault("OTEL_SERVICE_NAME", "entryway")
	v.SetDefault("SESSION_TIMEOUT_MIN", 10)
	v.SetDefault("SESSION_EXPIRY_DAYS", 365)
	v.SetDefault("LOGIN_TTL_HOUR", 720) // 30 days

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on defaults and env vars.
		// Anything else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
