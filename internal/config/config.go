// Package config provides environment configuration for the assistant services.
package config

import (
	"errors"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	Server    ServerConfig
	Agent     AgentConfig
	DevAgent  DevAgentConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Tracing   TracingConfig
	NATS      NATSConfig
	Redis     RedisConfig
	LLM       LLMConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// AllowedOrigins lists the storefront origins allowed by CORS.
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// AgentConfig describes the remote agent service.
type AgentConfig struct {
	BaseURL            string        `envconfig:"AGENT_BASE_URL" default:"http://localhost:8090/api/v1/agent"`
	FramePrefix        string        `envconfig:"AGENT_FRAME_PREFIX" default:"data: "`
	MaxRecommendations int           `envconfig:"AGENT_MAX_RECOMMENDATIONS" default:"3"`
	RequestTimeout     time.Duration `envconfig:"AGENT_REQUEST_TIMEOUT" default:"30s"`
}

// DevAgentConfig configures the development agent server.
type DevAgentConfig struct {
	Port       string        `envconfig:"AGENT_DEV_PORT" default:"8090"`
	TokenDelay time.Duration `envconfig:"AGENT_DEV_TOKEN_DELAY" default:"40ms"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"development-secret-change-in-production"`
}

// RateLimitConfig holds request rate limiting settings.
type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// SessionConfig holds assistant session manager settings.
type SessionConfig struct {
	IdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled  bool   `envconfig:"TRACING_ENABLED" default:"false"`
	Endpoint string `envconfig:"TRACING_ENDPOINT" default:"localhost:4318"`
}

// NATSConfig holds NATS settings. An empty URL disables turn publishing.
type NATSConfig struct {
	URL      string `envconfig:"NATS_URL"`
	CAFile   string `envconfig:"NATS_CA_FILE"`
	CertFile string `envconfig:"NATS_CERT_FILE"`
	KeyFile  string `envconfig:"NATS_KEY_FILE"`
	Token    string `envconfig:"NATS_TOKEN"`
}

// RedisConfig holds Redis settings. An empty URI disables the active room store.
type RedisConfig struct {
	URI string        `envconfig:"REDIS_URI"`
	TTL time.Duration `envconfig:"REDIS_ACTIVE_ROOM_TTL" default:"720h"`
}

// LLMConfig holds provider keys used by the development agent.
type LLMConfig struct {
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	Model           string `envconfig:"LLM_MODEL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration for logical errors beyond what the tags express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Agent.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("AGENT_BASE_URL must be an absolute URL")
	}
	if c.Agent.FramePrefix == "" {
		return errors.New("AGENT_FRAME_PREFIX cannot be empty")
	}
	if c.Agent.MaxRecommendations <= 0 {
		return errors.New("AGENT_MAX_RECOMMENDATIONS must be positive")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be positive")
	}
	return nil
}
