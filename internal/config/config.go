package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port string
		Host string
		TLS  struct {
			Enabled  bool
			CertFile string
			KeyFile  string
		}
		Debug bool
	}
	Database struct {
		// DSN carries the administrator principal the service writes with
		DSN       string
		Table     string
		RedisURI  string
		PingLimit time.Duration
	}
	Summarizer struct {
		Provider  string
		Timeout   time.Duration
		MaxTokens int64
	}
	Groq struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	Anthropic struct {
		APIKey string
		Model  string
	}
	Sentry struct {
		DSN string
	}
}

const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

func Load() (*Config, error) {

	envStack := os.Getenv("ENV_STACK")

	if envStack != "" {
		filePath := "./env-files/.env." + envStack
		err := godotenv.Load(filePath)
		if err != nil {
			fmt.Printf("Error loading .env file: %s\n", err)
		}
	} else {
		// Plain .env in the working directory, if any
		_ = godotenv.Load()
	}

	c := &Config{}

	c.Server.Port = os.Getenv("SERVER_PORT")
	if c.Server.Port == "" {
		c.Server.Port = os.Getenv("PORT")
	}
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}

	c.Server.Host = os.Getenv("SERVER_HOST")
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}

	c.Server.Debug = os.Getenv("ENABLE_DEBUG_ENDPOINTS") == "true"

	useTLS := os.Getenv("USE_TLS")
	c.Server.TLS.Enabled = useTLS == "true" || useTLS == "1"
	c.Server.TLS.CertFile = "./certs/localhost.pem"
	c.Server.TLS.KeyFile = "./certs/localhost-key.pem"

	c.Database.DSN = os.Getenv("DATABASE_DSN")
	c.Database.Table = os.Getenv("DATABASE_TABLE")
	if c.Database.Table == "" {
		c.Database.Table = "Foss"
	}
	c.Database.RedisURI = os.Getenv("REDIS_URI")

	var err error
	if c.Database.PingLimit, err = durationEnv("DATABASE_PING_TIMEOUT", 10*time.Second); err != nil {
		return c, err
	}

	c.Summarizer.Provider = strings.ToLower(os.Getenv("SUMMARIZER_PROVIDER"))
	if c.Summarizer.Provider == "" {
		c.Summarizer.Provider = ProviderGroq
	}
	if c.Summarizer.Provider != ProviderGroq && c.Summarizer.Provider != ProviderAnthropic {
		return c, fmt.Errorf("SUMMARIZER_PROVIDER must be %q or %q, got %q", ProviderGroq, ProviderAnthropic, c.Summarizer.Provider)
	}
	if c.Summarizer.Timeout, err = durationEnv("SUMMARIZER_TIMEOUT", 60*time.Second); err != nil {
		return c, err
	}
	if c.Summarizer.MaxTokens, err = intEnv("SUMMARIZER_MAX_TOKENS", 2048); err != nil {
		return c, err
	}

	c.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	c.Groq.Model = os.Getenv("GROQ_MODEL")
	if c.Groq.Model == "" {
		c.Groq.Model = "deepseek-r1-distill-llama-70b"
	}
	c.Groq.BaseURL = os.Getenv("GROQ_BASE_URL")
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}

	c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Anthropic.Model = os.Getenv("ANTHROPIC_MODEL")
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-3-7-sonnet-latest"
	}

	c.Sentry.DSN = os.Getenv("SENTRY_DSN")

	return c, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}

func intEnv(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
