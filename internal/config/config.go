package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by BELIEFGRAPH_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BELIEFGRAPH_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL is optional. Without it prompt history is kept in memory.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// LLMProvider returns the default provider for new sessions.
// Defaults to "gemini" if not set.
// Valid values: gemini, openai, anthropic, cerebras, openrouter, ollama, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "gemini"
	}
	return p
}

// LLMModel overrides the provider's default model when set.
func LLMModel() string {
	return os.Getenv("LLM_MODEL")
}

// LLMBaseURL overrides the provider's default endpoint when set.
func LLMBaseURL() string {
	return os.Getenv("LLM_BASE_URL")
}

// RetryMaxAttempts returns how many times a provider call is attempted.
// Defaults to 3 and is clamped to 3..5.
func RetryMaxAttempts() int {
	n, err := strconv.Atoi(os.Getenv("RETRY_MAX_ATTEMPTS"))
	if err != nil {
		return 3
	}
	return min(max(n, 3), 5)
}

// RetryInitialDelay returns the first backoff delay.
// Defaults to 1s if not set.
func RetryInitialDelay() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("RETRY_INITIAL_DELAY_MS"))
	if err != nil || ms <= 0 {
		return time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// ProviderRPS limits outbound calls per provider. Zero (the default) means
// unlimited.
func ProviderRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("PROVIDER_RPS"), 64)
	if err != nil || rps < 0 {
		return 0
	}
	return rps
}

// APIToken, when set, is required as a bearer token on /v1 routes.
func APIToken() string {
	return os.Getenv("API_TOKEN")
}

// SessionTTL returns how long an idle session is kept.
// Defaults to 60 minutes if not set.
func SessionTTL() time.Duration {
	m, err := strconv.Atoi(os.Getenv("SESSION_TTL_MINUTES"))
	if err != nil || m <= 0 {
		return time.Hour
	}
	return time.Duration(m) * time.Minute
}

// ProvidersFile is the optional YAML catalog path.
func ProvidersFile() string {
	return os.Getenv("PROVIDERS_FILE")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
