package common

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider names for the extraction client.
const (
	ProviderChat      = "chat"
	ProviderResponses = "responses"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Render RenderConfig
	LLM    LLMConfig
}

// ServerConfig holds the local HTTP surface configuration
type ServerConfig struct {
	Addr      string
	UploadDir string
}

// RenderConfig holds page-rendering tunables.
type RenderConfig struct {
	// JPEGQuality for the encoded page images, 1-100.
	JPEGQuality int
}

// LLMConfig holds model-endpoint configuration. Sampling parameters
// (temperature 0, top_p, seed) and the retry count are fixed constants in
// the extract package, not environment-tunable.
type LLMConfig struct {
	Provider          string // "chat" | "responses"
	Model             string
	BaseURL           string
	HuggingFaceAPIKey string
	OpenAIAPIKey      string
	Timeout           time.Duration
}

// LoadConfig loads configuration from environment variables.
// A .env file is honored when present (local development).
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	return &Config{
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", ""),
		},
		Render: RenderConfig{
			JPEGQuality: getEnvAsInt("RENDER_JPEG_QUALITY", 100),
		},
		LLM: LLMConfig{
			Provider:          getEnv("PROVIDER", ProviderChat),
			Model:             getEnv("LLM_MODEL", "openai/gpt-oss-20b"),
			BaseURL:           getEnv("LLM_BASE_URL", "https://router.huggingface.co/v1"),
			HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
	}
}

// APIKey returns the credential matching the configured provider.
func (c *LLMConfig) APIKey() string {
	if c.Provider == ProviderResponses {
		return c.OpenAIAPIKey
	}
	return c.HuggingFaceAPIKey
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderChat, ProviderResponses:
	default:
		return NewAppError("CONFIG_ERROR", "PROVIDER must be \"chat\" or \"responses\"", ErrInvalidInput)
	}
	if c.LLM.APIKey() == "" {
		if c.LLM.Provider == ProviderResponses {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
		return NewAppError("CONFIG_ERROR", "HUGGINGFACE_API_KEY is required", ErrInvalidInput)
	}
	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		return NewAppError("CONFIG_ERROR", "RENDER_JPEG_QUALITY must be between 1 and 100", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
