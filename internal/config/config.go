package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string `yaml:"database_url"`
	ServerPort       string `yaml:"server_port"`
	FrontendURL      string `yaml:"frontend_url"`
	OpenAIKey        string `yaml:"openai_api_key"`
	AIProvider       string `yaml:"ai_provider"`
	AIModel          string `yaml:"ai_model"`
	AIVisionModel    string `yaml:"ai_vision_model"`
	AIBaseURL        string `yaml:"ai_base_url"`
	RedisURL         string `yaml:"redis_url"`
	RabbitMQURL      string `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int    `yaml:"rabbitmq_prefetch"`
	MemoryServiceURL string `yaml:"memory_service_url"`
	EventServiceURL  string `yaml:"event_service_url"`
	AuthJWKSURL      string `yaml:"auth_jwks_url"`
	AuthIssuer       string `yaml:"auth_issuer"`
	AuthAudience     string `yaml:"auth_audience"`
	RateLimit        string `yaml:"rate_limit"`
	EnableHSTS       bool   `yaml:"enable_hsts"`
	WorkerDebugMode  bool   `yaml:"worker_debug_mode"`
	ServerDebugMode  bool   `yaml:"server_debug_mode"`
	OTELEnabled      bool   `yaml:"otel_enabled"`
	OTELEndpoint     string `yaml:"otel_endpoint"`
}

// Load builds configuration from the environment, with an optional YAML
// overlay read from CONFIG_FILE. Environment values win over file values.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ServerPort = getEnv("SERVER_PORT", defaultStr(cfg.ServerPort, "8080"))
	cfg.FrontendURL = getEnv("FRONTEND_URL", defaultStr(cfg.FrontendURL, "http://localhost:3000"))
	cfg.OpenAIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.AIProvider = getEnv("AI_PROVIDER", defaultStr(cfg.AIProvider, "openai"))
	cfg.AIModel = getEnv("AI_MODEL", defaultStr(cfg.AIModel, "gpt-4o-mini"))
	cfg.AIVisionModel = getEnv("AI_VISION_MODEL", defaultStr(cfg.AIVisionModel, "gpt-4o-mini"))
	cfg.AIBaseURL = getEnv("AI_BASE_URL", cfg.AIBaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", defaultStr(cfg.RedisURL, "redis://localhost:6379/0"))
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", defaultInt(cfg.RabbitMQPrefetch, 1))
	cfg.MemoryServiceURL = getEnv("MEMORY_SERVICE_URL", cfg.MemoryServiceURL)
	cfg.EventServiceURL = getEnv("EVENT_SERVICE_URL", cfg.EventServiceURL)
	cfg.AuthJWKSURL = getEnv("AUTH_JWKS_URL", cfg.AuthJWKSURL)
	cfg.AuthIssuer = getEnv("AUTH_ISSUER", cfg.AuthIssuer)
	cfg.AuthAudience = getEnv("AUTH_AUDIENCE", cfg.AuthAudience)
	cfg.RateLimit = getEnv("RATE_LIMIT", defaultStr(cfg.RateLimit, "5-S"))
	cfg.EnableHSTS = getEnvBool("ENABLE_HSTS", cfg.EnableHSTS)
	cfg.WorkerDebugMode = getEnvBool("WORKER_DEBUG_MODE", cfg.WorkerDebugMode)
	cfg.ServerDebugMode = getEnvBool("SERVER_DEBUG_MODE", cfg.ServerDebugMode)
	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for side-effect dispatch (event forwarding and memory updates)")
	}

	return cfg, nil
}

func defaultStr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func defaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
