package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Payment   PaymentConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BackendURL     string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN prefers DATABASE_URL and falls back to the discrete DB_* settings.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Schema)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type PaymentConfig struct {
	SecretKey      string
	PublishableKey string
	APIURL         string
	ReturnURL      string
	Currency       string
	ExchangeRate   float64
	TimeoutSeconds int
}

// Configured reports whether a processor secret is present.
func (c PaymentConfig) Configured() bool {
	return c.SecretKey != ""
}

type AuthConfig struct {
	SupabaseURL     string
	SupabaseAnonKey string
	JWTSecret       string
	AdminEmail      string
}

// Validate reports settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func Load() *Config {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("PORT", "3001")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("BACKEND_URL", "http://localhost:3001")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("PAYMENT_EXCHANGE_RATE", 0.0175)
	viper.SetDefault("PAYMENT_TIMEOUT_SECONDS", 15)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 30)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			BackendURL:     viper.GetString("BACKEND_URL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Payment: PaymentConfig{
			SecretKey:      viper.GetString("STRIPE_SECRET_KEY"),
			PublishableKey: viper.GetString("STRIPE_PUBLISHABLE_KEY"),
			APIURL:         viper.GetString("STRIPE_API_URL"),
			ReturnURL:      viper.GetString("STRIPE_RETURN_URL"),
			Currency:       viper.GetString("PAYMENT_CURRENCY"),
			ExchangeRate:   viper.GetFloat64("PAYMENT_EXCHANGE_RATE"),
			TimeoutSeconds: viper.GetInt("PAYMENT_TIMEOUT_SECONDS"),
		},
		Auth: AuthConfig{
			SupabaseURL:     viper.GetString("SUPABASE_URL"),
			SupabaseAnonKey: viper.GetString("SUPABASE_ANON_KEY"),
			JWTSecret:       viper.GetString("SUPABASE_JWT_SECRET"),
			AdminEmail:      viper.GetString("ADMIN_EMAIL"),
		},
		RateLimit: RateLimitConfig{
			Requests:      viper.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
