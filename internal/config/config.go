// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Backend    string // "mongo" or "memory"
	URI        string
	Name       string
	Collection string
	Timeout    time.Duration
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// KafkaConfig enables post event publication when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TracingConfig enables OpenTelemetry export when Endpoint is non-empty.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Log            LogConfig
	Kafka          KafkaConfig
	Tracing        TracingConfig
	AllowedOrigins []string
	JWTSecret      string
}

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           5000,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Backend:    BackendMongo,
		URI:        "mongodb://localhost:27017",
		Name:       "memories",
		Collection: "postmessages",
		Timeout:    5 * time.Second,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",
		"../../.env", // Project root when running from cmd/server
		filepath.Join(os.Getenv("HOME"), ".config/memories/.env"),
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		// Missing .env is fine, the environment alone is enough
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		serverConfig.Port = port
	}
	serverConfig.Host = getEnvOrDefault("HOST", serverConfig.Host)
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := DefaultDatabaseConfig()
	dbConfig.Backend = strings.ToLower(getEnvOrDefault("STORE_BACKEND", dbConfig.Backend))
	switch dbConfig.Backend {
	case BackendMongo, BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", dbConfig.Backend)
	}
	dbConfig.URI = getEnvOrDefault("MONGODB_URI", dbConfig.URI)
	dbConfig.Name = getEnvOrDefault("MONGODB_DATABASE", dbConfig.Name)
	dbConfig.Collection = getEnvOrDefault("MONGODB_COLLECTION", dbConfig.Collection)
	if timeout := os.Getenv("DB_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_TIMEOUT %q: %w", timeout, err)
		}
		dbConfig.Timeout = d
	}

	config := &Config{
		Server:   serverConfig,
		Database: dbConfig,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "posts.events"),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", "memories-api"),
			SampleRatio: 1.0,
		},
		AllowedOrigins: []string{"*"},
		JWTSecret:      getEnvOrDefault("JWT_SECRET", "test"),
	}

	if s := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
			config.Tracing.SampleRatio = f
		}
	}

	if origins := splitList(os.Getenv("ALLOWED_ORIGINS")); len(origins) > 0 {
		config.AllowedOrigins = origins
	}

	return config, nil
}

// Address returns host:port for the HTTP listener.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
