package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM providers understood by the binaries.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Retry    RetryConfig    `yaml:"retry"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Raster   RasterConfig   `yaml:"raster"`
	Server   ServerConfig   `yaml:"server"`
	Export   ExportConfig   `yaml:"export"`
	LogLevel string         `yaml:"log_level"`
}

// LLMConfig holds inference-service configuration
type LLMConfig struct {
	Provider          string        `yaml:"provider"`
	GeminiAPIKey      string        `yaml:"gemini_api_key"`
	GeminiModel       string        `yaml:"gemini_model"`
	OpenAIAPIKey      string        `yaml:"openai_api_key"`
	OpenAIModel       string        `yaml:"openai_model"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	StructuredOutput  bool          `yaml:"structured_output"`
	RequestsPerMinute int           `yaml:"requests_per_minute"` // 0 = no client-side quota
}

// RetryConfig is the per-page retry policy of the extraction client
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	MinWait     time.Duration `yaml:"min_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// PipelineConfig holds page-loop scheduling settings
type PipelineConfig struct {
	PageDelay   time.Duration `yaml:"page_delay"`
	ReasonLimit int           `yaml:"reason_limit"`
}

// RasterConfig holds document-to-image settings
type RasterConfig struct {
	DPI      int    `yaml:"dpi"`
	MaxPages int    `yaml:"max_pages"` // 0 = no limit
	Pdftoppm string `yaml:"pdftoppm"`
}

// ServerConfig holds daemon listener settings
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	Filename string `yaml:"filename"`
}

// DefaultConfig returns the built-in defaults.
// Retry and pacing values match the free-tier quota the extractor was tuned against.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:      ProviderGemini,
			GeminiModel:   "gemini-2.0-flash",
			OpenAIModel:   "gpt-4o-mini",
			OpenAIBaseURL: "https://api.openai.com/v1",
			Temperature:   0.0,
			Timeout:       90 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			MinWait:     10 * time.Second,
			MaxWait:     60 * time.Second,
			Multiplier:  2,
		},
		Pipeline: PipelineConfig{
			PageDelay:   5 * time.Second,
			ReasonLimit: 50,
		},
		Raster: RasterConfig{
			DPI:      150,
			Pdftoppm: "pdftoppm",
		},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			GRPCAddr:    ":9090",
			MaxUploadMB: 32,
		},
		Export: ExportConfig{
			Filename: "Invoice_Results.xlsx",
		},
		LogLevel: "info",
	}
}

// LoadConfig starts from DefaultConfig, applies the YAML file named by INVOICE_CONFIG (if any),
// then environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("INVOICE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", c.LLM.Provider))
	c.LLM.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.LLM.GeminiAPIKey)
	c.LLM.GeminiModel = getEnv("GEMINI_MODEL", c.LLM.GeminiModel)
	c.LLM.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.LLM.OpenAIAPIKey)
	c.LLM.OpenAIModel = getEnv("OPENAI_MODEL", c.LLM.OpenAIModel)
	c.LLM.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.LLM.OpenAIBaseURL)
	c.LLM.Temperature = getEnvAsFloat32("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvAsDuration("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.StructuredOutput = getEnvAsBool("LLM_STRUCTURED_OUTPUT", c.LLM.StructuredOutput)
	c.LLM.RequestsPerMinute = getEnvAsInt("LLM_REQUESTS_PER_MINUTE", c.LLM.RequestsPerMinute)

	c.Retry.MaxAttempts = getEnvAsInt("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.MinWait = getEnvAsDuration("RETRY_MIN_WAIT", c.Retry.MinWait)
	c.Retry.MaxWait = getEnvAsDuration("RETRY_MAX_WAIT", c.Retry.MaxWait)
	c.Retry.Multiplier = getEnvAsFloat64("RETRY_MULTIPLIER", c.Retry.Multiplier)

	c.Pipeline.PageDelay = getEnvAsDuration("PAGE_DELAY", c.Pipeline.PageDelay)
	c.Pipeline.ReasonLimit = getEnvAsInt("FAILURE_REASON_LIMIT", c.Pipeline.ReasonLimit)

	c.Raster.DPI = getEnvAsInt("RASTER_DPI", c.Raster.DPI)
	c.Raster.MaxPages = getEnvAsInt("RASTER_MAX_PAGES", c.Raster.MaxPages)
	c.Raster.Pdftoppm = getEnv("PDFTOPPM", c.Raster.Pdftoppm)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MaxUploadMB = getEnvAsInt("SERVER_MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	c.Export.Filename = getEnv("EXPORT_FILENAME", c.Export.Filename)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// APIKey returns the credential of the selected provider.
func (c *Config) APIKey() string {
	if c.LLM.Provider == ProviderOpenAI {
		return c.LLM.OpenAIAPIKey
	}
	return c.LLM.GeminiAPIKey
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the loaded configuration. A missing API key is fatal at startup.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("LLM_PROVIDER", c.LLM.Provider, Required, OneOf(ProviderGemini, ProviderOpenAI))
	switch c.LLM.Provider {
	case ProviderOpenAI:
		v.Field("OPENAI_API_KEY", c.LLM.OpenAIAPIKey, Required)
	default:
		v.Field("GEMINI_API_KEY", c.LLM.GeminiAPIKey, Required)
	}
	v.Field("LLM_TIMEOUT", c.LLM.Timeout, Positive)
	v.Field("LLM_REQUESTS_PER_MINUTE", c.LLM.RequestsPerMinute, NonNegative)
	v.Field("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts, IntRange(1, 10))
	v.Field("RETRY_MIN_WAIT", c.Retry.MinWait, NonNegative)
	v.Field("RETRY_MAX_WAIT", c.Retry.MaxWait, NonNegative)
	v.Field("RETRY_MULTIPLIER", c.Retry.Multiplier, AtLeast(1))
	v.Field("PAGE_DELAY", c.Pipeline.PageDelay, NonNegative)
	v.Field("RASTER_DPI", c.Raster.DPI, IntRange(72, 600))
	v.Field("RASTER_MAX_PAGES", c.Raster.MaxPages, NonNegative)
	v.Field("SERVER_MAX_UPLOAD_MB", c.Server.MaxUploadMB, Positive)
	if c.Retry.MaxWait > 0 && c.Retry.MaxWait < c.Retry.MinWait {
		v.errors = append(v.errors, ValidationError{
			Field: "RETRY_MAX_WAIT", Value: c.Retry.MaxWait, Message: "must not be below RETRY_MIN_WAIT",
		})
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrConfig)
	}
	return nil
}
