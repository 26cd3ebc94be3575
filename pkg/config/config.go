package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the parasut CLI.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Parasut credentials. When SecretName is set, missing values are
	// resolved from AWS Secrets Manager at startup.
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	CompanyID    string
	BaseURL      string
	InstanceID   string
	HTTPTimeout  time.Duration

	SecretName      string
	AWSRegion       string
	SecretsCacheTTL time.Duration

	TokenCacheEnabled bool
	RedisAddr         string
	RedisDB           int
	RedisPass         string
}

// Load loads configuration from environment variables and optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:       GetEnv("SERVICE_NAME", "parasut-cli"),
		Env:               GetEnv("ENV", "dev"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		ClientID:          GetEnv("PARASUT_CLIENT_ID", ""),
		ClientSecret:      GetEnv("PARASUT_CLIENT_SECRET", ""),
		Username:          GetEnv("PARASUT_USERNAME", ""),
		Password:          GetEnv("PARASUT_PASSWORD", ""),
		CompanyID:         GetEnv("PARASUT_COMPANY_ID", ""),
		BaseURL:           GetEnv("PARASUT_BASE_URL", "https://api.parasut.com"),
		InstanceID:        GetEnv("PARASUT_INSTANCE_ID", ""),
		HTTPTimeout:       GetEnvDuration("PARASUT_HTTP_TIMEOUT", 30*time.Second),
		SecretName:        GetEnv("PARASUT_SECRET_NAME", ""),
		AWSRegion:         GetEnv("AWS_REGION", "us-east-2"),
		SecretsCacheTTL:   GetEnvDuration("SECRETS_CACHE_TTL", time.Hour),
		TokenCacheEnabled: GetEnvBool("TOKEN_CACHE_ENABLED", false),
		RedisAddr:         GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           GetEnvInt("REDIS_DB", 0),
		RedisPass:         GetEnv("REDIS_PASS", ""),
	}
}
