// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultGRPCAddr   = ":9090"
	defaultMongoURI   = "mongodb://localhost:27017"
	defaultMongoDB    = "erp_auth"
	defaultRedisAddr  = "localhost:6379"
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 168 * time.Hour
)

// Config holds everything the service needs to start.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	MongoURI  string
	MongoDB   string
	RedisAddr string
	RedisDB   int

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	BootstrapTenant   string
	BootstrapUser     string
	BootstrapPassword string
}

// Load reads configuration from the environment. JWT_SECRET_KEY is the
// only required variable; everything else has a development default.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:          getEnv("ERP_HTTP_ADDR", defaultHTTPAddr),
		GRPCAddr:          getEnv("ERP_GRPC_ADDR", defaultGRPCAddr),
		MongoURI:          getEnv("ERP_MONGO_URI", defaultMongoURI),
		MongoDB:           getEnv("ERP_MONGO_DB", defaultMongoDB),
		RedisAddr:         getEnv("ERP_REDIS_ADDR", defaultRedisAddr),
		JWTSecret:         strings.TrimSpace(os.Getenv("JWT_SECRET_KEY")),
		BootstrapTenant:   getEnv("ERP_BOOTSTRAP_TENANT", "system"),
		BootstrapUser:     getEnv("ERP_BOOTSTRAP_USER", "admin"),
		BootstrapPassword: strings.TrimSpace(os.Getenv("ERP_BOOTSTRAP_PASSWORD")),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET_KEY is required")
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("ERP_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AccessTTL, err = getEnvDuration("ACCESS_TOKEN_DURATION", defaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = getEnvDuration("REFRESH_TOKEN_DURATION", defaultRefreshTTL); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go duration strings ("90m") and, for
// compatibility with older deployments, bare integers meaning seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("config: %s must be positive", key)
		}
		return d, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}
