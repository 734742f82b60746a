// Package config reads the service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port    string
	GinMode string

	JWTSecret string
	TokenTTL  time.Duration

	StorageDriver string
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string

	PageSize          int
	CacheTTL          time.Duration
	MaxPostTextLength int

	RateLimitPerMinute int
	CORSOrigins        []string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("STORAGE_DRIVER", DriverMongo)
	v.SetDefault("MONGODB_URI", "mongodb://127.0.0.1:27017")
	v.SetDefault("MONGODB_DATABASE", "yatube")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("PAGE_SIZE", 10)
	v.SetDefault("CACHE_TTL", 20*time.Second)
	v.SetDefault("MAX_POST_TEXT_LENGTH", 4000)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads the given .env files (".env" when none are named; missing files
// are skipped) and then the process environment, which wins.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:               v.GetString("PORT"),
		GinMode:            v.GetString("GIN_MODE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MongoURI:           v.GetString("MONGODB_URI"),
		MongoDatabase:      v.GetString("MONGODB_DATABASE"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		PageSize:           v.GetInt("PAGE_SIZE"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		MaxPostTextLength:  v.GetInt("MAX_POST_TEXT_LENGTH"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	switch c.StorageDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI must be set for the mongo driver"))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGODB_DATABASE must be set for the mongo driver"))
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN must be set for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("PAGE_SIZE must be positive"))
	}
	if c.MaxPostTextLength <= 0 {
		errs = append(errs, errors.New("MAX_POST_TEXT_LENGTH must be positive"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("CACHE_TTL must not be negative"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// ConfigureLogging applies the log level and format to the standard logrus
// logger.
func (c *Config) ConfigureLogging() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func (c *Config) Release() bool {
	return c.GinMode == "release"
}
