// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-super-secret-jwt-key"

type Config struct {
	Env               string        `mapstructure:"APP_ENV"`
	Port              string        `mapstructure:"PORT"`
	MongoURI          string        `mapstructure:"MONGODB_URI"`
	MongoDatabase     string        `mapstructure:"MONGODB_DATABASE"`
	MongoTransactions bool          `mapstructure:"MONGO_TRANSACTIONS"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	AuthRateLimit     int           `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateWindow    time.Duration `mapstructure:"AUTH_RATE_WINDOW"`
	AllowedOrigins    string        `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	EvidenceGate      bool          `mapstructure:"EVIDENCE_GATE"`
	OCRURL            string        `mapstructure:"OCR_URL"`
	OCRAPIKey         string        `mapstructure:"OCR_API_KEY"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3Region          string        `mapstructure:"S3_REGION"`
	S3Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKey       string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey       string        `mapstructure:"S3_SECRET_KEY"`
	MaxUploadMB       int64         `mapstructure:"MAX_UPLOAD_MB"`
}

// Load reads .env (if present) and the process environment into a validated Config.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments pass plain environment variables.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "beizzati_tracker")
	v.SetDefault("MONGO_TRANSACTIONS", false)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("AUTH_RATE_LIMIT", 20)
	v.SetDefault("AUTH_RATE_WINDOW", "1m")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EVIDENCE_GATE", false)
	v.SetDefault("OCR_URL", "https://api.ocr.space/parse/image")
	v.SetDefault("OCR_API_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("MAX_UPLOAD_MB", 10)
}

// Validate checks required values and production hardening.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.EvidenceGate && c.OCRURL == "" {
		return errors.New("OCR_URL is required when EVIDENCE_GATE is enabled")
	}
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Origins splits ALLOWED_ORIGINS into a trimmed list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
