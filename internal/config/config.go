package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"paylink/internal/logger"
)

// Link store backends.
const (
	LinkStoreMemory = "memory"
	LinkStoreSQLite = "sqlite"
	LinkStoreRedis  = "redis"
)

// Extraction providers.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderDocumentAI = "documentai"
)

type Config struct {
	// Extraction Configuration
	ExtractionProvider string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIMaxRetries   int

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string
	GoogleCredentialsJSON      string
	GoogleCredentialsFile      string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Schedule Configuration
	MonthPolicy string

	// Link Store Configuration
	LinkStore     string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LinkTTL       time.Duration
	PublicBaseURL string

	// HTTP Configuration
	HTTPAddr string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment. Credentials are not
// required here; commands check what they need with the Validate* methods.
func Load() (*Config, error) {
	var errs []error

	config := &Config{
		ExtractionProvider:         strings.ToLower(getEnv("EXTRACTION_PROVIDER", ProviderGemini)),
		GeminiAPIKey:               getEnv("GEMINI_API_KEY", ""),
		GeminiModel:                getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxRetries:           getEnvInt("OPENAI_MAX_RETRIES", 3, &errs),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleCredentialsJSON:      getEnv("GOOGLE_CREDENTIALS", ""),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "Ledger"),
		MonthPolicy:                strings.ToLower(getEnv("MONTH_POLICY", "tolerant")),
		LinkStore:                  strings.ToLower(getEnv("LINK_STORE", LinkStoreSQLite)),
		SQLitePath:                 getEnv("SQLITE_PATH", "paylink.db"),
		RedisAddr:                  getEnv("REDIS_ADDR", ""),
		RedisPassword:              getEnv("REDIS_PASSWORD", ""),
		RedisDB:                    getEnvInt("REDIS_DB", 0, &errs),
		LinkTTL:                    getEnvDuration("LINK_TTL", 0, &errs),
		PublicBaseURL:              strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	errs = append(errs, config.validate())
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.ExtractionProvider {
	case ProviderGemini, ProviderOpenAI, ProviderDocumentAI:
	default:
		errs = append(errs, fmt.Errorf("EXTRACTION_PROVIDER must be gemini, openai or documentai, got %q", c.ExtractionProvider))
	}
	switch c.LinkStore {
	case LinkStoreMemory, LinkStoreSQLite, LinkStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("LINK_STORE must be memory, sqlite or redis, got %q", c.LinkStore))
	}
	switch c.MonthPolicy {
	case "tolerant", "calendar":
	default:
		errs = append(errs, fmt.Errorf("MONTH_POLICY must be tolerant or calendar, got %q", c.MonthPolicy))
	}
	if c.OpenAIMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("OPENAI_MAX_RETRIES must be at least 1"))
	}
	return errors.Join(errs...)
}

// ValidateExtraction checks the settings needed by provider.
func (c *Config) ValidateExtraction(provider string) error {
	var errs []error
	switch provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, fmt.Errorf("GEMINI_API_KEY is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required"))
		}
		if !c.HasGoogleCredentials() {
			errs = append(errs, fmt.Errorf("GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS is required for OCR"))
		}
	case ProviderDocumentAI:
		if c.GoogleCloudProject == "" {
			errs = append(errs, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required"))
		}
		if c.DocumentAIProcessorID == "" {
			errs = append(errs, fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown extraction provider %q", provider))
	}
	return errors.Join(errs...)
}

// ValidateSheets checks the settings needed to append to Google Sheets.
func (c *Config) ValidateSheets() error {
	var errs []error
	if c.GoogleSheetURL == "" {
		errs = append(errs, fmt.Errorf("GOOGLE_SHEET_URL is required"))
	}
	if !c.HasGoogleCredentials() {
		errs = append(errs, fmt.Errorf("GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS is required"))
	}
	return errors.Join(errs...)
}

// ValidateLinkStore checks the settings of the selected link store backend.
func (c *Config) ValidateLinkStore() error {
	switch c.LinkStore {
	case LinkStoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite link store")
		}
	case LinkStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis link store")
		}
	}
	return nil
}

// HasGoogleCredentials reports whether inline or file credentials are configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleCredentialsJSON != "" || c.GoogleCredentialsFile != ""
}

// GoogleCredentials returns the service account JSON, preferring inline credentials.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.GoogleCredentialsJSON != "" {
		return []byte(c.GoogleCredentialsJSON), nil
	}
	if c.GoogleCredentialsFile != "" {
		data, err := os.ReadFile(c.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, raw))
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration such as 720h, got %q", key, raw))
		return defaultValue
	}
	return v
}
