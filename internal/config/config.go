package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		ENV string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Component string `yaml:"component"`
		Source    bool   `yaml:"source"`
	} `yaml:"log"`

	DB struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"db"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	GRPC struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"grpc"`

	HTTP struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"http"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	Admin struct {
		// UserID receives report notifications over the message transport.
		UserID uint64 `yaml:"user_id"`
		// TokenHash is the bcrypt hash of the admin gRPC token.
		TokenHash string `yaml:"token_hash"`
	} `yaml:"admin"`

	Intent struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"intent"`
}

// New builds the config from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func New() *Config {
	cfg := &Config{}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			// env still applies; a broken overlay should not block startup
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}

	cfg.App.ENV = getEnvDefault("APP_ENV", orDefault(cfg.App.ENV, "development"))

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", orDefault(cfg.Log.Level, "info"))
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", orDefault(cfg.Log.Format, "text"))
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", orDefault(cfg.Log.Component, "match_relay"))
	if v, ok := os.LookupEnv("LOG_SOURCE"); ok {
		cfg.Log.Source = isTruthy(v)
	}

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", orDefault(cfg.DB.Driver, "mysql")))
	cfg.DB.DSN = getEnvDefault("DB_DSN", getEnvDefault("MYSQL_DSN", cfg.DB.DSN))
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", orDefault(cfg.DB.Host, "localhost"))
		cfg.DB.User = getEnvDefault("DB_USER", orDefault(cfg.DB.User, "root"))
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", orDefault(cfg.DB.Password, "root"))
		cfg.DB.Name = getEnvDefault("DB_NAME", orDefault(cfg.DB.Name, "match_relay"))

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.Port = getEnvDefault("DB_PORT", orDefault(cfg.DB.Port, "5432"))
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
			)
		case "sqlite":
			cfg.DB.DSN = cfg.DB.Name + ".db"
		default:
			cfg.DB.Port = getEnvDefault("DB_PORT", orDefault(cfg.DB.Port, "3306"))
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", orDefault(cfg.Redis.Addr, "localhost:6379"))
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", cfg.Redis.Password)
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// gRPC (admin)
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", orDefault(cfg.GRPC.Host, "127.0.0.1"))
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", orDefault(cfg.GRPC.Port, "50051"))

	// HTTP + WebSocket
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", orDefault(cfg.HTTP.Host, "0.0.0.0"))
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", orDefault(cfg.HTTP.Port, "8080"))

	// Auth
	cfg.Auth.JWTSecret = getEnvDefault("JWT_SECRET", orDefault(cfg.Auth.JWTSecret, "dev-secret-change-me"))
	cfg.Auth.TokenTTL = getDurationDefault("JWT_TTL", durationOr(cfg.Auth.TokenTTL, 24*time.Hour))

	// Admin
	if v := os.Getenv("ADMIN_USER_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Admin.UserID = id
		}
	}
	cfg.Admin.TokenHash = getEnvDefault("ADMIN_TOKEN_HASH", cfg.Admin.TokenHash)

	cfg.Intent.TTL = getDurationDefault("INTENT_TTL", durationOr(cfg.Intent.TTL, 10*time.Minute))

	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func durationOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
