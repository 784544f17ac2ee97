package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderVenice    = "venice"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"

	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider      string
	GeminiAPIKey     string
	AnthropicAPIKey  string
	VeniceAPIKey     string
	OllamaURL        string
	ModelName        string
	BackendModelName string

	StorageBackend string
	RedisURL       string
	SQLiteDSN      string
	DatabaseURL    string
	SaveDir        string

	PresetsFile string

	MaxCorrections    int
	HistoryWindow     int
	GenerationTimeout time.Duration
	MaxAttempts       int
	WorldContext      bool
}

// Load reads the configuration from the environment. Malformed numbers and
// durations are reported; missing values fall back to defaults.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		VeniceAPIKey:     os.Getenv("VENICE_API_KEY"),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		ModelName:        os.Getenv("MODEL_NAME"),
		BackendModelName: os.Getenv("BACKEND_MODEL_NAME"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		SQLiteDSN:      os.Getenv("SQLITE_DSN"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SaveDir:        getEnv("SAVE_DIR", ".saves"),

		PresetsFile: os.Getenv("PRESETS_FILE"),
	}

	var err error
	if cfg.MaxCorrections, err = getEnvInt("MAX_CORRECTIONS", 2); err != nil {
		errs = append(errs, err)
	}
	if cfg.HistoryWindow, err = getEnvInt("HISTORY_WINDOW", 6); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxAttempts, err = getEnvInt("MAX_ATTEMPTS", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.WorldContext, err = getEnvBool("WORLD_CONTEXT", true); err != nil {
		errs = append(errs, err)
	}
	if cfg.GenerationTimeout, err = getEnvDuration("GENERATION_TIMEOUT", 45*time.Second); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks that the selected provider and storage backend have what
// they need to start.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateProvider(), c.ValidateStorage())
}

// ValidateProvider checks the LLM provider settings only.
func (c *Config) ValidateProvider() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when using gemini provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when using anthropic provider"))
		}
	case ProviderVenice:
		if c.VeniceAPIKey == "" {
			errs = append(errs, errors.New("VENICE_API_KEY is required when using venice provider"))
		}
	case ProviderOllama:
		if c.OllamaURL == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required when using ollama provider"))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("MAX_ATTEMPTS must be at least 1"))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateStorage checks the storage backend settings only.
func (c *Config) ValidateStorage() error {
	switch c.StorageBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when using redis storage")
		}
	case BackendSQLite:
		if c.SQLiteDSN == "" {
			return errors.New("SQLITE_DSN is required when using sqlite storage")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when using postgres storage")
		}
	case BackendFile:
		if c.SaveDir == "" {
			return errors.New("SAVE_DIR is required when using file storage")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
