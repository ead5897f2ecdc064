// Package config loads service configuration from environment variables.
// Every option has a default suitable for local development; a .env file in
// the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Cache        CacheConfig
	LLM          LLMConfig
	Security     SecurityConfig
	Optimization OptimizationConfig
}

type AppConfig struct {
	Name     string
	Host     string
	Port     int
	Debug    bool
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// ConnString returns the pgx connection string, preferring DATABASE_URL.
func (c DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
	KeyPrefix  string
}

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOllama      Provider = "ollama"
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderBedrock     Provider = "bedrock"
	ProviderHuggingFace Provider = "huggingface"
)

type LLMConfig struct {
	DefaultProvider Provider
	Ollama          OllamaConfig
	OpenAI          OpenAIConfig
	Anthropic       AnthropicConfig
	Bedrock         BedrockConfig
}

type OllamaConfig struct {
	Enabled     bool
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type OpenAIConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type AnthropicConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type BedrockConfig struct {
	Enabled bool
	Region  string
	// GatewayURL points at an OpenAI-compatible Bedrock access gateway. SigV4
	// signing stays in the gateway, not in this service.
	GatewayURL  string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type SecurityConfig struct {
	EnableInjectionDetection bool
	StrictValidation         bool
	EnableContentFilter      bool
}

type OptimizationConfig struct {
	Enabled             bool
	MaxIterations       int
	PopulationSize      int
	TargetCostReduction float64
	PerformanceThresh   float64
	UseGeneticAlgorithm bool
	MaxConcurrentJobs   int64
}

// Load builds the configuration from the environment. A missing .env file is
// not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		App: AppConfig{
			Name:      getEnv("APP_NAME", "promptforge"),
			Host:      getEnv("APP_HOST", "0.0.0.0"),
			Port:      getIntEnv("APP_PORT", 8000),
			Debug:     getBoolEnv("APP_DEBUG", false),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getIntEnv("DB_PORT", 5432),
			User:     getEnv("DB_USER", "promptforge"),
			Password: getEnv("DB_PASSWORD", "promptforge"),
			Name:     getEnv("DB_NAME", "promptforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getIntEnv("DB_MAX_CONNS", 10)),
			MinConns: int32(getIntEnv("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getBoolEnv("CACHE_ENABLED", true),
			DefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", time.Hour),
			KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "promptforge"),
		},
		LLM: LLMConfig{
			DefaultProvider: Provider(getEnv("DEFAULT_LLM_PROVIDER", string(ProviderOllama))),
			Ollama: OllamaConfig{
				Enabled:     getBoolEnv("OLLAMA_ENABLED", true),
				BaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:       getEnv("OLLAMA_MODEL", "llama3.1:latest"),
				Temperature: getFloatEnv("OLLAMA_TEMPERATURE", 0.7),
				MaxTokens:   getIntEnv("OLLAMA_MAX_TOKENS", 2048),
				Timeout:     getDurationEnv("OLLAMA_TIMEOUT", 60*time.Second),
			},
			OpenAI: OpenAIConfig{
				Enabled:     getBoolEnv("OPENAI_ENABLED", false),
				APIKey:      getEnv("OPENAI_API_KEY", ""),
				Model:       getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
				Temperature: getFloatEnv("OPENAI_TEMPERATURE", 0.7),
				MaxTokens:   getIntEnv("OPENAI_MAX_TOKENS", 2048),
				Timeout:     getDurationEnv("OPENAI_TIMEOUT", 60*time.Second),
			},
			Anthropic: AnthropicConfig{
				Enabled:     getBoolEnv("ANTHROPIC_ENABLED", false),
				APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
				Model:       getEnv("ANTHROPIC_MODEL", "claude-3-sonnet"),
				Temperature: getFloatEnv("ANTHROPIC_TEMPERATURE", 0.7),
				MaxTokens:   getIntEnv("ANTHROPIC_MAX_TOKENS", 2048),
				Timeout:     getDurationEnv("ANTHROPIC_TIMEOUT", 60*time.Second),
			},
			Bedrock: BedrockConfig{
				Enabled:     getBoolEnv("BEDROCK_ENABLED", false),
				Region:      getEnv("BEDROCK_REGION", "us-east-1"),
				GatewayURL:  getEnv("BEDROCK_GATEWAY_URL", ""),
				APIKey:      getEnv("BEDROCK_API_KEY", ""),
				Model:       getEnv("BEDROCK_MODEL", "claude-v2"),
				Temperature: getFloatEnv("BEDROCK_TEMPERATURE", 0.7),
				MaxTokens:   getIntEnv("BEDROCK_MAX_TOKENS", 2048),
				Timeout:     getDurationEnv("BEDROCK_TIMEOUT", 60*time.Second),
			},
		},
		Security: SecurityConfig{
			EnableInjectionDetection: getBoolEnv("ENABLE_PROMPT_INJECTION_DETECTION", true),
			StrictValidation:         getBoolEnv("STRICT_VALIDATION", false),
			EnableContentFilter:      getBoolEnv("ENABLE_CONTENT_FILTER", true),
		},
		Optimization: OptimizationConfig{
			Enabled:             getBoolEnv("OPTIMIZATION_ENABLED", true),
			MaxIterations:       getIntEnv("OPTIMIZATION_MAX_ITERATIONS", 5),
			PopulationSize:      getIntEnv("OPTIMIZATION_POPULATION_SIZE", 10),
			TargetCostReduction: getFloatEnv("OPTIMIZATION_TARGET_COST_REDUCTION", 0.2),
			PerformanceThresh:   getFloatEnv("OPTIMIZATION_PERFORMANCE_THRESHOLD", 0.8),
			UseGeneticAlgorithm: getBoolEnv("OPTIMIZATION_USE_GENETIC_ALGORITHM", true),
			MaxConcurrentJobs:   int64(getIntEnv("OPTIMIZATION_MAX_CONCURRENT_JOBS", 4)),
		},
	}
}

// Validate checks cross-field consistency that cannot be defaulted away.
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock:
	default:
		return fmt.Errorf("unknown default LLM provider: %s", c.LLM.DefaultProvider)
	}
	if c.LLM.DefaultProvider == ProviderOpenAI && c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when openai is the default provider")
	}
	if c.LLM.DefaultProvider == ProviderAnthropic && c.LLM.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when anthropic is the default provider")
	}
	if c.Optimization.MaxIterations < 1 || c.Optimization.MaxIterations > 20 {
		return fmt.Errorf("OPTIMIZATION_MAX_ITERATIONS must be between 1 and 20")
	}
	if c.Optimization.PopulationSize < 5 || c.Optimization.PopulationSize > 50 {
		return fmt.Errorf("OPTIMIZATION_POPULATION_SIZE must be between 5 and 50")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
