// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram struct {
		Token     string
		WebAppURL string
	}
	Storage struct {
		// Driver selects the key-value backend: memory, sqlite, postgres or redis.
		Driver string
		Path   string
	}
	DB struct {
		Host         string
		Port         string
		User         string
		Password     string
		DBName       string
		SSLMode      string
		MaxOpenConns int
		MaxIdleConns int
		ConnLifetime time.Duration
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	OpenRouter struct {
		APIKey  string
		BaseURL string
		Model   string
		Referer string
		Title   string
	}
	Gateway struct {
		// URL the API client talks to; empty means this process's own server.
		URL string
	}
	Server struct {
		Port string
	}
	Auth struct {
		JWTSecret      string
		SessionTTL     time.Duration
		InitDataMaxAge time.Duration
	}
	Archive struct {
		Bucket string
		Region string
		Prefix string
	}
	Image struct {
		MaxWidth  int
		MaxHeight int
		Quality   int
		MaxSizeKB int
	}
	Log struct {
		Level       string
		Development bool
	}
	ShutdownTimeout time.Duration
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"Telegram.Token":      "TELEGRAM_TOKEN",
	"Telegram.WebAppURL":  "TELEGRAM_WEBAPP_URL",
	"Storage.Driver":      "STORAGE_DRIVER",
	"Storage.Path":        "STORAGE_PATH",
	"DB.Host":             "DB_HOST",
	"DB.Port":             "DB_PORT",
	"DB.User":             "DB_USER",
	"DB.Password":         "DB_PASSWORD",
	"DB.DBName":           "DB_NAME",
	"DB.SSLMode":          "DB_SSL_MODE",
	"Redis.Addr":          "REDIS_ADDR",
	"Redis.Password":      "REDIS_PASSWORD",
	"Redis.DB":            "REDIS_DB",
	"OpenRouter.APIKey":   "OPENROUTER_API_KEY",
	"OpenRouter.BaseURL":  "OPENROUTER_BASE_URL",
	"OpenRouter.Model":    "OPENROUTER_MODEL",
	"OpenRouter.Referer":  "OPENROUTER_REFERER",
	"OpenRouter.Title":    "OPENROUTER_TITLE",
	"Gateway.URL":         "GATEWAY_URL",
	"Server.Port":         "SERVER_PORT",
	"Auth.JWTSecret":      "JWT_SECRET",
	"Auth.SessionTTL":     "SESSION_TTL",
	"Auth.InitDataMaxAge": "INIT_DATA_MAX_AGE",
	"Archive.Bucket":      "ARCHIVE_S3_BUCKET",
	"Archive.Region":      "ARCHIVE_S3_REGION",
	"Archive.Prefix":      "ARCHIVE_S3_PREFIX",
	"Log.Level":           "LOG_LEVEL",
	"Log.Development":     "LOG_DEVELOPMENT",
	"ShutdownTimeout":     "SHUTDOWN_TIMEOUT",
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add paths where to look for the config file
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.photocal")

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No file: defaults and environment variables only.
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			v.Set(key, os.Getenv(envVar))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Storage.Driver", "sqlite")
	v.SetDefault("Storage.Path", "./data/photocal.db")
	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.DBName", "photocal")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("OpenRouter.BaseURL", "https://openrouter.ai/api/v1")
	v.SetDefault("OpenRouter.Model", "anthropic/claude-3-haiku")
	v.SetDefault("OpenRouter.Referer", "https://photocal.ai")
	v.SetDefault("OpenRouter.Title", "PhotocAI Nutrition Assistant")
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Auth.SessionTTL", 24*time.Hour)
	v.SetDefault("Auth.InitDataMaxAge", 24*time.Hour)
	v.SetDefault("Archive.Prefix", "diaries")
	v.SetDefault("Image.MaxWidth", 800)
	v.SetDefault("Image.MaxHeight", 800)
	v.SetDefault("Image.Quality", 70)
	v.SetDefault("Image.MaxSizeKB", 500)
	v.SetDefault("Log.Level", "info")
}

// Validate reports configuration that makes the process unable to serve.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is not configured")
	}
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is not configured")
	}
	return nil
}

// GatewayURL returns the gateway base URL, defaulting to the local server.
func (c *Config) GatewayURL() string {
	if c.Gateway.URL != "" {
		return strings.TrimRight(c.Gateway.URL, "/")
	}
	return "http://localhost:" + c.Server.Port
}
